package summary

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hn_insight/internal/domain"
)

const (
	fallbackTechnical = "Technical summary unavailable."
	fallbackLayman    = "Summary unavailable."
	fallbackComments  = "Discussion summary unavailable."
)

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}

// parseSummary decodes provider output into a complete summary. Only
// undecodable output is an error; missing or mistyped fields get fallbacks.
func parseSummary(content string, hasComments bool) (*domain.Summary, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidJSON)
	}

	commentsDefault := ""
	if hasComments {
		commentsDefault = fallbackComments
	}

	s := &domain.Summary{
		Technical: stringField(raw, "technical", fallbackTechnical),
		Layman:    stringField(raw, "layman", fallbackLayman),
		Comments:  stringField(raw, "comments", commentsDefault),
		Keywords:  keywordsField(raw["keywords"]),
		Sentiment: sentimentField(raw["sentiment"]),
	}
	s.TechnicalZh = stringField(raw, "technical_zh", s.Technical)
	s.LaymanZh = stringField(raw, "layman_zh", s.Layman)
	s.CommentsZh = stringField(raw, "comments_zh", s.Comments)
	return s, nil
}

func stringField(raw map[string]any, key, fallback string) string {
	v, ok := raw[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func keywordsField(v any) []string {
	keywords := []string{}
	items, ok := v.([]any)
	if !ok {
		return keywords
	}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			keywords = append(keywords, strings.TrimSpace(s))
		}
	}
	return keywords
}

func sentimentField(v any) domain.Sentiment {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.NeutralSentiment
	}
	return domain.Sentiment{
		Constructive:  score(obj["constructive"], domain.NeutralSentiment.Constructive),
		Technical:     score(obj["technical"], domain.NeutralSentiment.Technical),
		Controversial: score(obj["controversial"], domain.NeutralSentiment.Controversial),
	}
}

// score coerces a number or numeric string into 0..100.
func score(v any, fallback int) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return fallback
		}
		f = parsed
	default:
		return fallback
	}
	if math.IsNaN(f) {
		return fallback
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}
