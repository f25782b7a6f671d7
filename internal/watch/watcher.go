package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/petinel/payments-service/internal/domain"
)

const defaultPollInterval = 5 * time.Second

// AttemptView is the slice of attempt state an observer needs.
type AttemptView struct {
	AttemptID string
	Status    domain.AttemptStatus
	ExpiresAt *time.Time
}

// StatusReader reads the authoritative attempt record.
type StatusReader interface {
	ReadStatus(ctx context.Context, attemptID string) (*AttemptView, error)
}

// Event is what a Watcher delivers to its consumer. Advisory marks a local
// countdown expiry that has not been confirmed against the server record;
// only the server is authoritative for fulfillment.
type Event struct {
	AttemptID string
	Status    domain.AttemptStatus
	Advisory  bool
}

// Watcher observes one payment attempt through two racing producers (hub push
// and a fallback poll) plus a local countdown against the hard deadline. The
// terminal server state is delivered exactly once, no matter how many channels
// report it or how often.
type Watcher struct {
	hub      *Hub
	reader   StatusReader
	interval time.Duration
	logger   *slog.Logger
}

func NewWatcher(hub *Hub, reader StatusReader, logger *slog.Logger) *Watcher {
	return &Watcher{
		hub:      hub,
		reader:   reader,
		interval: defaultPollInterval,
		logger:   logger,
	}
}

// WithPollInterval overrides the fallback poll cadence. Test hook.
func (w *Watcher) WithPollInterval(d time.Duration) *Watcher {
	w.interval = d
	return w
}

// Run watches the attempt until a terminal server state is observed or ctx is
// cancelled, sending events to out. It owns out and closes it on return.
// Subscription and timers are always torn down on exit.
func (w *Watcher) Run(ctx context.Context, attemptID string, out chan<- Event) error {
	defer close(out)

	pushed, unsubscribe := w.hub.Subscribe(attemptID)
	defer unsubscribe()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Prime with the current record so an attempt that went terminal before
	// we subscribed is delivered immediately.
	view, err := w.reader.ReadStatus(ctx, attemptID)
	if err != nil {
		return err
	}

	var countdown <-chan time.Time
	if view.ExpiresAt != nil {
		timer := time.NewTimer(time.Until(*view.ExpiresAt))
		defer timer.Stop()
		countdown = timer.C
	}

	if view.Status.IsTerminal() {
		w.deliver(ctx, out, Event{AttemptID: attemptID, Status: view.Status})
		return nil
	}

	advisoryExpired := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update := <-pushed:
			if update.Status.IsTerminal() {
				w.deliver(ctx, out, Event{AttemptID: attemptID, Status: update.Status})
				return nil
			}

		case <-ticker.C:
			view, err := w.reader.ReadStatus(ctx, attemptID)
			if err != nil {
				w.logger.Warn("status poll failed", "attempt_id", attemptID, "error", err)
				continue
			}
			if view.Status.IsTerminal() {
				w.deliver(ctx, out, Event{AttemptID: attemptID, Status: view.Status})
				return nil
			}

		case <-countdown:
			// The local clock ran out. Tell the consumer, but keep watching:
			// a late confirmation at the server still wins, and the server
			// record is the only truth fulfillment acts on.
			if !advisoryExpired {
				advisoryExpired = true
				w.deliver(ctx, out, Event{AttemptID: attemptID, Status: domain.AttemptExpired, Advisory: true})
			}
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, out chan<- Event, evt Event) {
	select {
	case out <- evt:
	case <-ctx.Done():
	}
}
