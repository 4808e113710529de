package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/monitoring"
)

// ExpireFunc runs the expire operation for one ticket. It must be
// idempotent: the scheduler delivers at least once.
type ExpireFunc func(ctx context.Context, ticketID uuid.UUID) (models.ExpireOutcome, error)

// Scheduler registers one in-process timer per reservation. It is a latency
// optimization only — timers do not survive a restart, and the periodic
// sweep remains the correctness backstop.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	expire ExpireFunc

	maxRetries  uint64
	backoffBase time.Duration
	log         *logrus.Entry
}

func New(maxRetries int, backoffBase time.Duration) *Scheduler {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Scheduler{
		timers:      make(map[string]*time.Timer),
		maxRetries:  uint64(maxRetries),
		backoffBase: backoffBase,
		log:         logrus.WithField("component", "scheduler"),
	}
}

// SetExpireFunc binds the expire operation. Set once during wiring, before
// any Schedule call; the scheduler and the ticket service reference each
// other, so the function is attached after both exist.
func (s *Scheduler) SetExpireFunc(fn ExpireFunc) {
	s.mu.Lock()
	s.expire = fn
	s.mu.Unlock()
}

// Schedule registers a one-shot expiration at fireAt and returns an opaque
// handle for cancellation.
func (s *Scheduler) Schedule(ticketID uuid.UUID, fireAt time.Time) string {
	handle := uuid.NewString()
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.fire(handle, ticketID)
	})
	s.mu.Unlock()

	return handle
}

// Cancel stops the pending timer for handle. Best-effort: if the timer has
// already fired or is firing, the expire operation's own state check is
// what keeps a paid ticket paid.
func (s *Scheduler) Cancel(handle string) {
	s.mu.Lock()
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
	s.mu.Unlock()
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for handle, t := range s.timers {
		t.Stop()
		delete(s.timers, handle)
	}
	s.mu.Unlock()
}

func (s *Scheduler) fire(handle string, ticketID uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, handle)
	fn := s.expire
	s.mu.Unlock()

	if fn == nil {
		return
	}

	log := s.log.WithField("ticket_id", ticketID)

	var outcome models.ExpireOutcome
	op := func() error {
		var err error
		outcome, err = fn(context.Background(), ticketID)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.backoffBase
	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, s.maxRetries)); err != nil {
		// Recoverable: the sweep will pick the ticket up.
		log.WithError(err).Warn("expire retries exhausted, leaving it to the sweep")
		return
	}

	if outcome == models.OutcomeExpired {
		monitoring.TicketsExpired.WithLabelValues("scheduler").Inc()
	}
	log.WithField("outcome", string(outcome)).Debug("one-shot expiration fired")
}
