package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TicketExpirer is the slice of the ticket service the sweeper needs.
type TicketExpirer interface {
	ExpireDueTickets(ctx context.Context) (int, error)
}

// Sweeper periodically expires stale reservations in bounded batches. This
// is the correctness backstop: the system converges through the sweep alone
// even with one-shot scheduling disabled.
type Sweeper struct {
	svc      TicketExpirer
	interval time.Duration
	log      *logrus.Entry
}

func NewSweeper(svc TicketExpirer, interval time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		log:      logrus.WithField("component", "sweeper"),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	expired, err := s.svc.ExpireDueTickets(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep failed")
		return
	}
	if expired > 0 {
		s.log.WithField("expired", expired).Info("sweep released stale reservations")
	}
}
