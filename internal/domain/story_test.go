package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/x", "example.com"},
		{"https://github.com/golang/go", "github.com"},
		{"http://blog.www.dev:8080/post", "blog.www.dev"},
		{"", ""},
		{"http://[::1", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainFromURL(tt.in))
		})
	}
}

func TestStoryStatus_IsTerminal(t *testing.T) {
	assert.True(t, StoryStatusCompleted.IsTerminal())
	assert.True(t, StoryStatusSkipped.IsTerminal())
	assert.False(t, StoryStatusPending.IsTerminal())
	assert.False(t, StoryStatusFailed.IsTerminal())
}

func TestItem_Storable(t *testing.T) {
	assert.True(t, (&Item{Type: "story"}).Storable())
	assert.True(t, (&Item{Type: "job", Title: "Hiring"}).Storable())
	assert.False(t, (&Item{Type: "comment", Text: "reply"}).Storable())
	assert.False(t, (&Item{Type: "story", Title: "x", Dead: true}).Storable())

	var missing *Item
	assert.False(t, missing.Storable())
}
