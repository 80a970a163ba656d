package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hn_insight/internal/domain"
	"hn_insight/testdata/utils"
)

func TestNewStoryMessage(t *testing.T) {
	sum := &domain.Summary{StoryID: 9, Layman: "plain", Keywords: []string{"go"}}
	story := &domain.Story{
		ID:           9,
		Title:        "Title",
		CommentsDump: utils.Ptr("[Comment 1]: hi\n"),
		Summary:      sum,
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	msg := NewStoryMessage(story, sum, now)

	assert.Equal(t, ActionSummarized, msg.Action)
	assert.Nil(t, msg.Story.Summary)
	assert.NotNil(t, story.Summary)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "commentsDump")
	assert.NotContains(t, string(body), "[Comment 1]")
	assert.Contains(t, string(body), `"layman":"plain"`)
}
