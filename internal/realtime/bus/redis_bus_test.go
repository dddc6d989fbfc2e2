package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/realtime"
)

func TestDecode(t *testing.T) {
	msg, err := decode(`{"channel":"u1","event":"EvaluationReceived","data":{"speech_id":"s"}}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Channel != "u1" || msg.Event != realtime.SSEEventEvaluationReceived {
		t.Fatalf("decode: unexpected %+v", msg)
	}
	if _, err := decode(`{"event":"x"}`); err == nil {
		t.Fatalf("decode: expected error for missing channel")
	}
	if _, err := decode(`not json`); err == nil {
		t.Fatalf("decode: expected error for bad json")
	}
}

func TestNewRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(logger.Nop(), RedisConfig{}); err == nil {
		t.Fatalf("NewRedisBus: expected error without addr")
	}
	if _, err := NewRedisBus(nil, RedisConfig{Addr: "x"}); err == nil {
		t.Fatalf("NewRedisBus: expected error without logger")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus integration tests")
	}
	b, err := NewRedisBus(logger.Nop(), RedisConfig{Addr: addr, Channel: "speakwell-test-" + uuid.NewString()})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.SSEMessage{Channel: "u", Event: realtime.SSEEventSpeechShared}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Event != realtime.SSEEventSpeechShared {
			t.Fatalf("forwarded event: got %s", m.Event)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}
