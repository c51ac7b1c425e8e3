package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

func TestConvertMessages(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	messages := []entity.Message{{
		ID:        4,
		User:      entity.User{Username: "alice"},
		Content:   "hello",
		CreatedAt: created,
		Replies: []entity.DeveloperReply{{
			ID:        9,
			Developer: entity.User{Username: "admin"},
			Content:   "thanks",
			CreatedAt: created.Add(time.Hour),
		}},
	}}

	got := ConvertMessages(messages, true)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "alice", got[0].Username)
		assert.Equal(t, "2025-03-14 09:26:53", got[0].Date)
		assert.True(t, got[0].CanManage)
		if assert.Len(t, got[0].Replies, 1) {
			assert.Equal(t, "admin", got[0].Replies[0].Developer)
			assert.Equal(t, "2025-03-14 10:26:53", got[0].Replies[0].Date)
		}
	}

	plain := ConvertMessages(messages, false)
	assert.False(t, plain[0].CanManage)
	assert.NotNil(t, ConvertMessages(nil, false))
}
