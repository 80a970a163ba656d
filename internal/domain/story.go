package domain

import (
	"net/url"
	"strings"
	"time"
)

// StoryStatus tracks how far a story got through enrichment.
type StoryStatus string

const (
	StoryStatusPending   StoryStatus = "pending"
	StoryStatusCompleted StoryStatus = "completed"
	StoryStatusFailed    StoryStatus = "failed"
	// StoryStatusSkipped is terminal: no content source was available.
	StoryStatusSkipped StoryStatus = "skipped"
)

// IsTerminal reports whether the story must not be picked up again.
func (s StoryStatus) IsTerminal() bool {
	return s == StoryStatusCompleted || s == StoryStatusSkipped
}

type Story struct {
	ID           int64       `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	URL          *string     `db:"url" json:"url,omitempty"`
	Author       *string     `db:"author" json:"author,omitempty"`
	PostedAt     time.Time   `db:"posted_at" json:"postedAt"`
	Points       int         `db:"points" json:"points"`
	NumComments  int         `db:"num_comments" json:"numComments"`
	Kids         string      `db:"kids" json:"-"` // JSON array of child comment ids
	CommentsDump *string     `db:"comments_dump" json:"-"`
	Text         *string     `db:"text" json:"text,omitempty"`
	Domain       string      `db:"domain" json:"domain,omitempty"`
	Type         string      `db:"type" json:"type"`
	Status       StoryStatus `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`

	Summary *Summary `db:"-" json:"summary,omitempty"`
}

// Sentiment scores are independent 0-100 values; they need not sum to 100.
type Sentiment struct {
	Constructive  int `json:"constructive"`
	Technical     int `json:"technical"`
	Controversial int `json:"controversial"`
}

// NeutralSentiment is used when the provider omits or mangles the scores.
var NeutralSentiment = Sentiment{Constructive: 50, Technical: 50, Controversial: 50}

type Summary struct {
	StoryID     int64     `json:"storyId"`
	Technical   string    `json:"technical"`
	TechnicalZh string    `json:"technicalZh"`
	Layman      string    `json:"layman"`
	LaymanZh    string    `json:"laymanZh"`
	Comments    string    `json:"comments"`
	CommentsZh  string    `json:"commentsZh"`
	Keywords    []string  `json:"keywords"`
	Sentiment   Sentiment `json:"sentiment"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DomainFromURL returns the hostname without a leading "www.", or "" when
// the URL is empty or does not parse.
func DomainFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
