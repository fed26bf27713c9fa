package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/keyrotation"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// ErrRateLimited is returned once every credential slot tried for a call
// answered 429. Job handlers let it propagate so the job is retried later.
var ErrRateLimited = errors.New("llm rate limited")

type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Chatter is the single operation every tool needs.
type Chatter interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// SlotSource hands out credential slots; *keyrotation.Manager implements it.
type SlotSource interface {
	Next(ctx context.Context) keyrotation.Slot
	Size() int
}

type Config struct {
	APIVersion string
	Deployment string
	HTTPClient *http.Client
}

func ConfigFromEnv() Config {
	return Config{
		APIVersion: envutil.String("AZURE_OPENAI_API_VERSION", "2023-03-15-preview"),
		Deployment: envutil.String("AZURE_OPENAI_DEPLOYMENT", "gpt-4.1"),
	}
}

type Client struct {
	log    *logger.Logger
	keys   SlotSource
	cfg    Config
	tracer trace.Tracer

	mu      sync.Mutex
	clients map[int]*openai.Client
}

func New(keys SlotSource, cfg Config, log *logger.Logger) (*Client, error) {
	if keys == nil || keys.Size() == 0 {
		return nil, fmt.Errorf("credential slots required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Deployment) == "" {
		return nil, fmt.Errorf("deployment required")
	}
	return &Client{
		log:     log.With("service", "AzureChat", "deployment", cfg.Deployment),
		keys:    keys,
		cfg:     cfg,
		tracer:  otel.Tracer("scoolish/llm"),
		clients: map[int]*openai.Client{},
	}, nil
}

// Chat sends one system+user exchange. On 429 it rotates to the next slot
// and tries again, at most once per configured slot.
func (c *Client) Chat(ctx context.Context, req Request) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, span := c.tracer.Start(ctx, "llm.Chat", trace.WithAttributes(
		attribute.String("llm.deployment", c.cfg.Deployment),
		attribute.Int("llm.max_tokens", req.MaxTokens),
	))
	defer span.End()

	messages := []openai.ChatCompletionMessage{}
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	var lastErr error
	for attempt := 0; attempt < c.keys.Size(); attempt++ {
		slot := c.keys.Next(ctx)
		span.SetAttributes(attribute.Int("llm.slot", slot.Index), attribute.Int("llm.attempt", attempt))

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		resp, err := c.clientFor(slot).CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.cfg.Deployment,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		cancel()
		c.observe(err, time.Since(start), resp.Usage)

		if err == nil {
			if len(resp.Choices) == 0 {
				err = fmt.Errorf("empty completion (slot %d)", slot.Index)
				span.SetStatus(codes.Error, err.Error())
				return "", err
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}
		if !IsRateLimit(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chat completion failed")
			return "", fmt.Errorf("chat completion (slot %d): %w", slot.Index, err)
		}
		c.log.Warn("rate limited; rotating key", "slot", slot.Index, "endpoint", slot.Endpoint, "attempt", attempt)
		lastErr = err
	}
	span.SetStatus(codes.Error, "rate limited on every slot")
	return "", fmt.Errorf("%w: %w", ErrRateLimited, lastErr)
}

func (c *Client) observe(err error, dur time.Duration, usage openai.Usage) {
	status := "ok"
	switch {
	case IsRateLimit(err):
		status = "rate_limited"
	case err != nil:
		status = "error"
	}
	observability.Current().ObserveLLMRequest(c.cfg.Deployment, status, dur, usage.PromptTokens, usage.CompletionTokens)
}

func (c *Client) clientFor(slot keyrotation.Slot) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cli, ok := c.clients[slot.Index]; ok {
		return cli
	}
	cfg := openai.DefaultAzureConfig(slot.APIKey, slot.Endpoint)
	cfg.APIVersion = c.cfg.APIVersion
	deployment := c.cfg.Deployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	if c.cfg.HTTPClient != nil {
		cfg.HTTPClient = c.cfg.HTTPClient
	}
	cli := openai.NewClientWithConfig(cfg)
	c.clients[slot.Index] = cli
	return cli
}

// IsRateLimit reports whether err is an HTTP 429 from the completions API.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	return false
}
