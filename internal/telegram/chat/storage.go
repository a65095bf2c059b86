package chat

import (
	"sort"
	"sync"
)

type Storage struct {
	chats map[int64]*Chat
	mtx   sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		chats: make(map[int64]*Chat),
	}
}

// Chat returns the chat with the given id, creating it on first use.
func (a *Storage) Chat(id int64) *Chat {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	c, ok := a.chats[id]
	if !ok {
		c = newChat(id)
		a.chats[id] = c
	}
	return c
}

// Watchers lists the ids of chats reporting session events, in ascending order.
func (a *Storage) Watchers() []int64 {
	a.mtx.RLock()
	defer a.mtx.RUnlock()

	var ids []int64
	for id, c := range a.chats {
		if c.Watching() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
