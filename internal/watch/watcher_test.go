package watch_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/watch"
)

// stubReader serves a mutable attempt view, simulating the status endpoint.
type stubReader struct {
	mu   sync.Mutex
	view watch.AttemptView
	err  error
}

func (s *stubReader) ReadStatus(ctx context.Context, attemptID string) (*watch.AttemptView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cp := s.view
	return &cp, nil
}

func (s *stubReader) setStatus(status domain.AttemptStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Status = status
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, out <-chan watch.Event, timeout time.Duration) []watch.Event {
	t.Helper()
	var events []watch.Event
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-out:
			if !ok {
				return events
			}
			events = append(events, evt)
		case <-deadline:
			t.Fatalf("watcher did not finish, got %d events so far", len(events))
		}
	}
}

func TestWatcher_HubPushDeliversTerminalOnce(t *testing.T) {
	hub := watch.NewHub()
	reader := &stubReader{view: watch.AttemptView{AttemptID: "attempt-1", Status: domain.AttemptPending}}
	watcher := watch.NewWatcher(hub, reader, testLogger()).WithPollInterval(time.Hour)

	out := make(chan watch.Event)
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(context.Background(), "attempt-1", out) }()

	// Give the watcher time to subscribe, then push.
	require.Eventually(t, func() bool { return hub.SubscriberCount("attempt-1") == 1 },
		time.Second, 5*time.Millisecond)

	reader.setStatus(domain.AttemptConfirmed)
	hub.Publish("attempt-1", domain.AttemptConfirmed)
	hub.Publish("attempt-1", domain.AttemptConfirmed)

	events := collect(t, out, 2*time.Second)
	require.NoError(t, <-errCh)

	require.Len(t, events, 1)
	assert.Equal(t, domain.AttemptConfirmed, events[0].Status)
	assert.False(t, events[0].Advisory)
	assert.Equal(t, 0, hub.SubscriberCount("attempt-1"), "subscription torn down on exit")
}

func TestWatcher_PollPicksUpMissedTransition(t *testing.T) {
	hub := watch.NewHub()
	reader := &stubReader{view: watch.AttemptView{AttemptID: "attempt-1", Status: domain.AttemptPending}}
	watcher := watch.NewWatcher(hub, reader, testLogger()).WithPollInterval(10 * time.Millisecond)

	out := make(chan watch.Event)
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(context.Background(), "attempt-1", out) }()

	time.Sleep(30 * time.Millisecond)
	reader.setStatus(domain.AttemptFailed)

	events := collect(t, out, 2*time.Second)
	require.NoError(t, <-errCh)

	require.Len(t, events, 1)
	assert.Equal(t, domain.AttemptFailed, events[0].Status)
}

func TestWatcher_AlreadyTerminalDeliversImmediately(t *testing.T) {
	hub := watch.NewHub()
	reader := &stubReader{view: watch.AttemptView{AttemptID: "attempt-1", Status: domain.AttemptExpired}}
	watcher := watch.NewWatcher(hub, reader, testLogger()).WithPollInterval(time.Hour)

	out := make(chan watch.Event)
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(context.Background(), "attempt-1", out) }()

	events := collect(t, out, 2*time.Second)
	require.NoError(t, <-errCh)

	require.Len(t, events, 1)
	assert.Equal(t, domain.AttemptExpired, events[0].Status)
}

func TestWatcher_CountdownEmitsAdvisoryThenServerStateWins(t *testing.T) {
	hub := watch.NewHub()
	expires := time.Now().Add(20 * time.Millisecond)
	reader := &stubReader{view: watch.AttemptView{
		AttemptID: "attempt-1",
		Status:    domain.AttemptPending,
		ExpiresAt: &expires,
	}}
	watcher := watch.NewWatcher(hub, reader, testLogger()).WithPollInterval(time.Hour)

	out := make(chan watch.Event, 2)
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(context.Background(), "attempt-1", out) }()

	// Advisory expiry fires from the local countdown.
	select {
	case evt := <-out:
		assert.Equal(t, domain.AttemptExpired, evt.Status)
		assert.True(t, evt.Advisory)
	case <-time.After(2 * time.Second):
		t.Fatal("no advisory expiry event")
	}

	// The payment actually lands late; the push ends the watch with the
	// authoritative terminal state.
	reader.setStatus(domain.AttemptConfirmed)
	hub.Publish("attempt-1", domain.AttemptConfirmed)

	events := collect(t, out, 2*time.Second)
	require.NoError(t, <-errCh)

	require.Len(t, events, 1)
	assert.Equal(t, domain.AttemptConfirmed, events[0].Status)
	assert.False(t, events[0].Advisory)
}

func TestWatcher_ContextCancellationStopsRun(t *testing.T) {
	hub := watch.NewHub()
	reader := &stubReader{view: watch.AttemptView{AttemptID: "attempt-1", Status: domain.AttemptPending}}
	watcher := watch.NewWatcher(hub, reader, testLogger()).WithPollInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan watch.Event)
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx, "attempt-1", out) }()

	require.Eventually(t, func() bool { return hub.SubscriberCount("attempt-1") == 1 },
		time.Second, 5*time.Millisecond)
	cancel()

	events := collect(t, out, 2*time.Second)
	assert.Empty(t, events)
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, hub.SubscriberCount("attempt-1"))
}
