package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"data-portal/backend/internal/logging"
	"data-portal/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.SessionEvent
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.SessionEvent) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SessionEvent(nil), m.events...)
}

// waitForEvents polls until the emitter has n events or the deadline passes.
func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.SessionEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := m.getEvents(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.getEvents()
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(logging.Discard(), nil, &domain.SessionEvent{EventType: domain.EventSessionCreated})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(logging.Discard(), emitter, nil)

	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &domain.SessionEvent{
		EventType: domain.EventSessionCreated,
		UserID:    "admin",
		Source:    "test",
	}

	EmitAsync(logging.Discard(), emitter, event)

	events := waitForEvents(t, emitter, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "admin" {
		t.Errorf("event user_id = %q, want %q", events[0].UserID, "admin")
	}
	if events[0].EventType != domain.EventSessionCreated {
		t.Errorf("event type = %q, want %q", events[0].EventType, domain.EventSessionCreated)
	}
}

func TestEmitAsync_NilLoggerAndError(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}

	// Should not panic on error with the default logger
	EmitAsync(nil, emitter, &domain.SessionEvent{EventType: domain.EventSessionDestroyed})

	if events := waitForEvents(t, emitter, 1); len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(logging.Discard(), emitter, &domain.SessionEvent{EventType: domain.EventSessionRenewed})
		}()
	}
	wg.Wait()

	if events := waitForEvents(t, emitter, 10); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func TestMulti(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("kafka down")}
	c := &mockEventEmitter{}

	m := Multi(a, nil, b, c)
	err := m.Emit(context.Background(), &domain.SessionEvent{EventType: domain.EventLoginFailed})
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Emit error = %v, want kafka down", err)
	}
	for name, e := range map[string]*mockEventEmitter{"a": a, "b": b, "c": c} {
		if n := len(e.getEvents()); n != 1 {
			t.Errorf("emitter %s got %d events, want 1", name, n)
		}
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := Multi().Emit(context.Background(), &domain.SessionEvent{}); err != nil {
		t.Errorf("empty Multi Emit = %v, want nil", err)
	}
}
