package hn

// firebaseItem is the shape of /v0/item/{id}.json.
type firebaseItem struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Score       int     `json:"score"`
	Descendants int     `json:"descendants"`
	Kids        []int64 `json:"kids"`
	Deleted     bool    `json:"deleted"`
	Dead        bool    `json:"dead"`
}

// algoliaSearchResponse is the shape of /api/v1/search.
type algoliaSearchResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID string `json:"objectID"`
}

// algoliaItem is the shape of /api/v1/items/{id}: the story with its full
// comment tree nested under children.
type algoliaItem struct {
	ID        int64         `json:"id"`
	Type      string        `json:"type"`
	Author    string        `json:"author"`
	CreatedAt int64         `json:"created_at_i"`
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	Text      string        `json:"text"`
	Points    *int          `json:"points"`
	Children  []algoliaItem `json:"children"`
}
