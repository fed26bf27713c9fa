package toolstest

import (
	"context"
	"sync"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
)

// Chatter replays canned replies in order and records every request.
type Chatter struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	Requests []llm.Request
}

func Reply(replies ...string) *Chatter { return &Chatter{Replies: replies} }

func (c *Chatter) Chat(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) == 0 {
		return "", nil
	}
	r := c.Replies[0]
	if len(c.Replies) > 1 {
		c.Replies = c.Replies[1:]
	}
	return r, nil
}

func (c *Chatter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}
