package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := UserChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventEvaluationReceived, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventSpeechShared, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventEvaluationReceived {
		t.Fatalf("first event: want=%s got=%s", SSEEventEvaluationReceived, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventSpeechShared {
		t.Fatalf("second event: want=%s got=%s", SSEEventSpeechShared, got.Event)
	}

	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("Subscribers after close: expected 0, got %d", n)
	}
	// Broadcasting to a closed client's old channel must not panic.
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventSkillsUpdated})

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventProfileUpdated})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventProfileUpdated {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventProfileUpdated, got.Event)
	}
	hub.CloseClient(clientB)
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := "speech-owner"
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)
	defer hub.CloseClient(client)

	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventEvaluationReceived, Data: i})
	}
	if got := len(client.Outbound); got != outboundBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", outboundBuffer, got)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	hub.AddChannel(a, "a")
	hub.AddChannel(b, "b")
	hub.AddChannel(a, "  ")
	defer hub.CloseClient(a)
	defer hub.CloseClient(b)

	hub.Broadcast(SSEMessage{Channel: "a", Event: SSEEventAvatarUpdated})
	recvMessage(t, a.Outbound, time.Second)
	if len(b.Outbound) != 0 {
		t.Fatalf("client b received a message for channel a")
	}

	hub.RemoveChannel(a, "a")
	hub.Broadcast(SSEMessage{Channel: "a", Event: SSEEventAvatarUpdated})
	if len(a.Outbound) != 0 {
		t.Fatalf("client a received a message after RemoveChannel")
	}
}

func TestSSEHubServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "c")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/sse/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.ServeHTTP(rec, req, client)
	}()

	hub.Broadcast(SSEMessage{Channel: "c", Event: SSEEventEvaluationReceived, Data: map[string]string{"speech_id": "s1"}})
	deadline := time.Now().Add(time.Second)
	for len(client.Outbound) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give the writer a moment to flush the dequeued message.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	hub.CloseClient(client)

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: EvaluationReceived") || !strings.Contains(body, `"speech_id":"s1"`) {
		t.Fatalf("unexpected stream body: %q", body)
	}
}

func TestSSEHubCloseClientIsIdempotent(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, "room")
	hub.CloseClient(c)
	hub.CloseClient(c)
	if n := hub.Subscribers("room"); n != 0 {
		t.Fatalf("Subscribers after close: %d", n)
	}
	hub.Broadcast(SSEMessage{Channel: "room", Event: SSEEventSpeechUpdated})
}
