package chat

import (
	"sync"
)

// Chat is the bot's view of one Telegram conversation.
type Chat struct {
	ID   int64
	Spam *spam

	watch bool
	mtx   sync.Mutex
}

func newChat(id int64) *Chat {
	return &Chat{
		ID:   id,
		Spam: newSpam(),
	}
}

// SetWatch turns session event reports for this chat on or off.
func (c *Chat) SetWatch(w bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.watch = w
}

func (c *Chat) Watching() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.watch
}
