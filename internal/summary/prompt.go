package summary

import (
	"fmt"
	"strings"

	"hn_insight/internal/domain"
)

const (
	noContentPlaceholder  = "(Content failed to load, rely on title and comments)"
	noCommentsPlaceholder = "(No comments yet)"
	noURLPlaceholder      = "No URL"
)

const outputSchema = `{
  "technical": "3 bullet points summary using Markdown (bullet points start with -). Focus on the core technical details from the Article Content.",
  "technical_zh": "The technical summary translated to Simplified Chinese, same Markdown structure.",
  "layman": "One short paragraph explaining the significance in plain English.",
  "layman_zh": "The layman paragraph translated to Simplified Chinese.",
  "comments": "Summary of user discussion/controversy using Markdown. Focus on the Top Comments. Use an empty string if there are no comments.",
  "comments_zh": "The discussion summary translated to Simplified Chinese. Use an empty string if there are no comments.",
  "keywords": ["tag1", "tag2", "tag3"],
  "sentiment": {
    "constructive": 0-100,
    "technical": 0-100,
    "controversial": 0-100
  }
}`

func buildPrompt(story domain.Item, commentDump, articleContent string) string {
	url := story.URL
	if url == "" {
		url = noURLPlaceholder
	}
	content := strings.TrimSpace(articleContent)
	if content == "" {
		content = noContentPlaceholder
	}
	comments := strings.TrimSpace(commentDump)
	if comments == "" {
		comments = noCommentsPlaceholder
	}

	var sb strings.Builder
	sb.WriteString("You are an expert tech news analyst for \"HN-Insight\".\n")
	sb.WriteString("Analyze the following Hacker News story, its main content, and its top comments.\n\n")
	sb.WriteString("Story Meta:\n")
	fmt.Fprintf(&sb, "- Title: %s\n", story.Title)
	fmt.Fprintf(&sb, "- URL: %s\n\n", url)
	sb.WriteString("Article Content (Truncated):\n\"\"\"\n")
	sb.WriteString(content)
	sb.WriteString("\n\"\"\"\n\n")
	sb.WriteString("Top Comments:\n")
	sb.WriteString(comments)
	sb.WriteString("\n\n")
	sb.WriteString("Output a valid JSON object with the following structure (do NOT use Markdown code blocks, just raw JSON):\n")
	sb.WriteString(outputSchema)
	sb.WriteString("\n")
	return sb.String()
}
