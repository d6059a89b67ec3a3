package assistant

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an append-only, in-memory message log for one panel.
type Conversation struct {
	mu   sync.Mutex
	msgs []Message
	now  func() time.Time
}

func NewConversation() *Conversation {
	return &Conversation{now: time.Now}
}

// Append stamps and stores a message, returning it.
func (c *Conversation) Append(role Role, content string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := Message{Role: role, Content: content, Timestamp: c.now()}
	c.msgs = append(c.msgs, m)
	return m
}

// Messages returns a copy of the log in append order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *Conversation) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}
