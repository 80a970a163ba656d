package domain

import "time"

// Item is a normalized Hacker News item as returned by either backend.
type Item struct {
	ID          int64
	Title       string
	URL         string
	Author      string
	PostedAt    time.Time
	Points      int
	NumComments int
	Kids        []int64
	Text        string
	Type        string
	Deleted     bool
	Dead        bool
}

// Valid reports whether the item is neither deleted nor dead.
func (i *Item) Valid() bool {
	return i != nil && !i.Deleted && !i.Dead
}

// Storable reports whether the item can be stored as a story: it must be
// valid, and anything other than a story needs a title.
func (i *Item) Storable() bool {
	return i.Valid() && (i.Type == "story" || i.Title != "")
}

// StoryWithComments is an item plus its cleaned top-level comments.
type StoryWithComments struct {
	Story        Item
	Comments     []string
	CommentsDump string
}
