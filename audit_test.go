package crossAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) all() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// blockingSink parks in Emit until released, signalling entry on started.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
}

func TestAuditDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "login_success", UserID: "u1", Success: true})

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" || event.UserID != "u1" || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestAuditDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := &collectingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login_failed"})
	}
	d.Close()

	if got := len(sink.all()); got != 10 {
		t.Fatalf("expected 10 delivered events after Close, got %d", got)
	}

	// Emit after Close is a no-op.
	d.Emit(context.Background(), AuditEvent{EventType: "login_failed"})
	if got := len(sink.all()); got != 10 {
		t.Fatalf("expected no delivery after Close, got %d", got)
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := newBlockingSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: "a"})
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the first event")
	}

	// Sink is parked on the first event, so the second fills the buffer
	// and the third has nowhere to go.
	d.Emit(context.Background(), AuditEvent{EventType: "b"})
	d.Emit(context.Background(), AuditEvent{EventType: "c"})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}

	close(sink.release)
	d.Close()
}

func TestAuditDispatcherDisabled(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &collectingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when auditing is disabled")
	}

	// The nil dispatcher is safe on every method.
	d.Emit(context.Background(), AuditEvent{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), AuditEvent{EventType: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, AuditEvent{EventType: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full channel despite cancelled context")
	}
}

func TestJSONWriterSinkWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EventType: "sso_token_issued",
		UserID:    "u1",
		WebsiteID: "w1",
		Success:   true,
		Metadata:  map[string]string{"website_domain": "shop.example.test"},
	})
	sink.Emit(context.Background(), AuditEvent{EventType: "login_failed", Error: "invalid credentials"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d: %q", len(lines), buf.String())
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.EventType != "sso_token_issued" || first.Metadata["website_domain"] != "shop.example.test" {
		t.Fatalf("unexpected first event: %+v", first)
	}

	var second AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if second.Error != "invalid credentials" {
		t.Fatalf("unexpected second event: %+v", second)
	}
}
