package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStorage_ChatIsReused(t *testing.T) {
	s := NewStorage()
	c := s.Chat(7)
	assert.Same(t, c, s.Chat(7))
	assert.Equal(t, int64(7), c.ID)
	assert.True(t, c.Spam.Get(1).IsZero())

	now := time.Now()
	c.Spam.Set(1, now)
	assert.Equal(t, now, s.Chat(7).Spam.Get(1))
}

func TestStorage_Watchers(t *testing.T) {
	s := NewStorage()
	s.Chat(3).SetWatch(true)
	s.Chat(1).SetWatch(true)
	s.Chat(2)
	assert.Equal(t, []int64{1, 3}, s.Watchers())

	s.Chat(3).SetWatch(false)
	assert.Equal(t, []int64{1}, s.Watchers())
}

func TestSpam_Take(t *testing.T) {
	s := newSpam()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, s.Take(2, now, time.Minute))
	assert.Equal(t, time.Minute, s.Take(2, now, time.Minute))
	assert.Equal(t, 30*time.Second, s.Take(2, now.Add(30*time.Second), time.Minute))
	assert.Zero(t, s.Take(1, now, time.Second), "levels are independent")

	assert.Zero(t, s.Take(2, now.Add(time.Minute), time.Minute))
	s.Reset(2)
	assert.True(t, s.Get(2).IsZero())
	assert.Zero(t, s.Take(2, now, time.Minute))
}
