package hn

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CleanComment turns HN comment markup into plain text. Tags are dropped,
// entities decoded and whitespace collapsed.
func CleanComment(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var sb strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			// HN separates paragraphs with a bare <p>.
			name, _ := z.TagName()
			if string(name) == "p" || string(name) == "br" {
				sb.WriteByte(' ')
			}
		}
	}
}

// FormatCommentDump labels comments for inclusion in a prompt:
// "[Comment 1]: ...\n[Comment 2]: ...\n". Empty comments are not numbered.
func FormatCommentDump(comments []string) string {
	var sb strings.Builder
	n := 0
	for _, c := range comments {
		c = CleanComment(c)
		if c == "" {
			continue
		}
		n++
		fmt.Fprintf(&sb, "[Comment %d]: %s\n", n, c)
	}
	return sb.String()
}
