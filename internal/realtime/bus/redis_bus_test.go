package bus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := encodeEnvelope("api-1", realtime.SSEMessage{Channel: "u1", Event: realtime.SSEEventJobDone}, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Origin != "api-1" || !env.SentAt.Equal(at) || env.Message.Channel != "u1" || env.Message.Event != realtime.SSEEventJobDone {
		t.Fatalf("envelope: %+v", env)
	}
}

func TestDecodeEnvelopeRejectsBadPayloads(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"origin":"api-1","message":{"event":"JobDone"}}`,
		`{"channel":"u1","event":"JobDone"}`,
	} {
		if _, err := decodeEnvelope([]byte(raw)); err == nil {
			t.Fatalf("payload %s: want error", raw)
		}
	}
}

func TestNewRedisBusDefaultsAndGuards(t *testing.T) {
	b := NewRedisBusWithClient(nil, "  ", logger.Nop()).(*redisBus)
	if b.channel != defaultChannel {
		t.Fatalf("channel: %q", b.channel)
	}
	if !strings.Contains(b.origin, "-") {
		t.Fatalf("origin: %q", b.origin)
	}
	if err := b.Publish(context.Background(), realtime.SSEMessage{Channel: "u1"}); err == nil {
		t.Fatalf("publish without client: want error")
	}
	if err := b.StartForwarder(context.Background(), nil); err == nil {
		t.Fatalf("forwarder without client: want error")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
