package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/platform/keyrotation"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type azureStub struct {
	mu        sync.Mutex
	seenKeys  []string
	limited   map[string]bool
	lastBody  map[string]any
	lastQuery string
	lastPath  string
}

func (s *azureStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("api-key")
	s.mu.Lock()
	s.seenKeys = append(s.seenKeys, key)
	s.lastPath = r.URL.Path
	s.lastQuery = r.URL.RawQuery
	_ = json.NewDecoder(r.Body).Decode(&s.lastBody)
	limited := s.limited[key]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if limited {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"429","message":"Requests to the ChatCompletions Operation have exceeded rate limit"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4.1","choices":[{"index":0,"message":{"role":"assistant","content":"  answer from ` + key + `  "},"finish_reason":"stop"}]}`))
}

func newTestClient(t *testing.T, stub *azureStub, keys ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	cfg := keyrotation.Config{Mode: keyrotation.ModeLocal}
	for _, k := range keys {
		cfg.Keys = append(cfg.Keys, k)
		cfg.Endpoints = append(cfg.Endpoints, srv.URL)
	}
	mgr, err := keyrotation.New(cfg, nil, logger.Nop())
	if err != nil {
		t.Fatalf("keyrotation.New: %v", err)
	}
	c, err := New(mgr, Config{APIVersion: "2023-03-15-preview", Deployment: "gpt-4.1"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestChatSendsAzureRequestAndTrimsReply(t *testing.T) {
	stub := &azureStub{limited: map[string]bool{}}
	c := newTestClient(t, stub, "key-a")

	got, err := c.Chat(context.Background(), Request{System: "sys", User: "hello", MaxTokens: 42})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "answer from key-a" {
		t.Fatalf("reply: got %q", got)
	}
	if stub.lastPath != "/openai/deployments/gpt-4.1/chat/completions" {
		t.Fatalf("path: got %q", stub.lastPath)
	}
	if !strings.Contains(stub.lastQuery, "api-version=2023-03-15-preview") {
		t.Fatalf("query: got %q", stub.lastQuery)
	}
	msgs, _ := stub.lastBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages: want 2 got %d", len(msgs))
	}
	if mt, _ := stub.lastBody["max_tokens"].(float64); mt != 42 {
		t.Fatalf("max_tokens: got %v", stub.lastBody["max_tokens"])
	}
}

func TestChatRotatesPastRateLimitedSlot(t *testing.T) {
	stub := &azureStub{limited: map[string]bool{"key-a": true}}
	c := newTestClient(t, stub, "key-a", "key-b")

	got, err := c.Chat(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "answer from key-b" {
		t.Fatalf("reply: got %q", got)
	}
	if len(stub.seenKeys) != 2 || stub.seenKeys[0] != "key-a" || stub.seenKeys[1] != "key-b" {
		t.Fatalf("keys tried: %v", stub.seenKeys)
	}
}

func TestChatReturnsErrRateLimitedWhenEverySlotIsLimited(t *testing.T) {
	stub := &azureStub{limited: map[string]bool{"key-a": true, "key-b": true}}
	c := newTestClient(t, stub, "key-a", "key-b")

	_, err := c.Chat(context.Background(), Request{User: "hi"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if !IsRateLimit(err) {
		t.Fatalf("IsRateLimit should accept the wrapped error")
	}
	if len(stub.seenKeys) != 2 {
		t.Fatalf("each slot should be tried once, got %v", stub.seenKeys)
	}
}
