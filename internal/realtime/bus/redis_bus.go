package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
)

const defaultChannel = "sse"

// envelope is the wire form of a relayed message. Origin names the
// publishing instance.
type envelope struct {
	Origin  string              `json:"origin"`
	SentAt  time.Time           `json:"sent_at"`
	Message realtime.SSEMessage `json:"message"`
}

type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
	origin  string
}

// NewRedisBusWithClient relays on channel (default "sse") over an existing
// client. The bus does not own rdb; Close is a no-op for the connection.
func NewRedisBusWithClient(rdb goredis.UniversalClient, channel string, log *logger.Logger) Bus {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultChannel
	}
	return &redisBus{
		log:     log.With("service", "RedisSSEBus", "redis_channel", channel),
		rdb:     rdb,
		channel: channel,
		origin:  instanceID(),
	}
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if strings.TrimSpace(msg.Channel) == "" {
		return fmt.Errorf("SSE message has no channel")
	}
	raw, err := encodeEnvelope(b.origin, msg, time.Now())
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.log.Info("SSE forwarder subscribed", "origin", b.origin)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				env, err := decodeEnvelope([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad redis SSE payload", "error", err)
					continue
				}
				if env.Origin != b.origin {
					b.log.Debug("relayed SSE message", "origin", env.Origin, "event", env.Message.Event, "lag_ms", time.Since(env.SentAt).Milliseconds())
				}
				onMsg(env.Message)
			}
		}
	}()
	return nil
}

// Close releases nothing: the client is shared with the key counter and the
// metrics collector and is closed by its owner.
func (b *redisBus) Close() error { return nil }

func encodeEnvelope(origin string, msg realtime.SSEMessage, at time.Time) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, SentAt: at.UTC(), Message: msg})
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, err
	}
	if strings.TrimSpace(env.Message.Channel) == "" {
		return envelope{}, fmt.Errorf("payload has no channel")
	}
	return env, nil
}
