package hn

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAlgolia(t *testing.T, handler http.HandlerFunc) *Algolia {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlgolia(Config{
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		MaxComments:    2,
	}, testLogger())
}

func TestAlgolia_TopIDs(t *testing.T) {
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "front_page", r.URL.Query().Get("tags"))
		assert.Equal(t, "3", r.URL.Query().Get("hitsPerPage"))
		fmt.Fprint(w, `{"hits":[{"objectID":"11"},{"objectID":"bogus"},{"objectID":"33"}]}`)
	})

	assert.Equal(t, []int64{11, 33}, a.TopIDs(context.Background(), 3))
}

func TestAlgolia_TopIDs_ErrorYieldsEmpty(t *testing.T) {
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ids := a.TopIDs(context.Background(), 30)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestAlgolia_FetchItemWithComments(t *testing.T) {
	var calls atomic.Int32
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/items/500", r.URL.Path)
		fmt.Fprint(w, `{
			"id": 500, "type": "story", "author": "dang", "created_at_i": 1700000000,
			"title": "Ask HN: Tree?", "url": null, "text": "<p>Body</p>", "points": 10,
			"children": [
				{"id": 501, "text": "<p>Nice!</p>", "children": [{"id": 510, "text": "nested"}]},
				{"id": 502, "text": "Disagree"},
				{"id": 503, "text": "over the limit"}
			]
		}`)
	})

	res, err := a.FetchItemWithComments(context.Background(), 500)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Ask HN: Tree?", res.Story.Title)
	assert.Equal(t, "dang", res.Story.Author)
	assert.Equal(t, 10, res.Story.Points)
	assert.Equal(t, 3, res.Story.NumComments)
	assert.Equal(t, []int64{501, 502, 503}, res.Story.Kids)
	assert.Equal(t, "<p>Body</p>", res.Story.Text)
	assert.Equal(t, "[Comment 1]: Nice!\n[Comment 2]: Disagree\n", res.CommentsDump)
}

func TestAlgolia_FetchItem_Missing(t *testing.T) {
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	item, err := a.FetchItem(context.Background(), 9)
	assert.NoError(t, err)
	assert.Nil(t, item)

	res, err := a.FetchItemWithComments(context.Background(), 9)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestAlgolia_FetchItem_NullPoints(t *testing.T) {
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 8, "title": "t", "points": null}`)
	})

	item, err := a.FetchItem(context.Background(), 8)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 0, item.Points)
	assert.Equal(t, "story", item.Type)
}

func TestAlgolia_FetchItemWithComments_UntitledNonStoryIsAbsent(t *testing.T) {
	a := newTestAlgolia(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 77, "type": "comment", "author": "x", "text": "reply", "children": []}`)
	})

	res, err := a.FetchItemWithComments(context.Background(), 77)
	assert.NoError(t, err)
	assert.Nil(t, res)
}
