package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/monitoring"
	"github.com/nearbytix/nearbytix/internal/repository"
	"github.com/nearbytix/nearbytix/pkg/rabbitmq"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrSoldOut           = errors.New("event is sold out")
	ErrForbidden         = errors.New("ticket belongs to another user")
	ErrInvalidTransition = errors.New("only reserved tickets can be paid")
	ErrTicketExpired     = errors.New("ticket reservation has expired")
)

// ExpirationScheduler registers one-shot expirations. Cancellation is
// advisory: the expire operation's own state check is the real guard, and
// the periodic sweep works with no scheduler at all.
type ExpirationScheduler interface {
	Schedule(ticketID uuid.UUID, fireAt time.Time) string
	Cancel(handle string)
}

type TicketService interface {
	ReserveTicket(ctx context.Context, userID, eventID uuid.UUID) (*models.Ticket, error)
	PayTicket(ctx context.Context, ticketID, callerID uuid.UUID) (*models.Ticket, error)
	ExpireTicket(ctx context.Context, ticketID uuid.UUID) (models.ExpireOutcome, error)
	ExpireDueTickets(ctx context.Context) (int, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)
	ListUserTickets(ctx context.Context, userID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error)
	ListEventTickets(ctx context.Context, eventID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error)
}

type ticketService struct {
	ticketRepo repository.TicketRepository
	eventRepo  repository.EventRepository
	userRepo   repository.UserRepository
	scheduler  ExpirationScheduler
	publisher  *rabbitmq.Publisher

	expiration     time.Duration
	sweepBatchSize int

	now func() time.Time
	log *logrus.Entry
}

func NewTicketService(
	ticketRepo repository.TicketRepository,
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	scheduler ExpirationScheduler,
	publisher *rabbitmq.Publisher,
	expiration time.Duration,
	sweepBatchSize int,
) TicketService {
	return &ticketService{
		ticketRepo:     ticketRepo,
		eventRepo:      eventRepo,
		userRepo:       userRepo,
		scheduler:      scheduler,
		publisher:      publisher,
		expiration:     expiration,
		sweepBatchSize: sweepBatchSize,
		now:            time.Now,
		log:            logrus.WithField("component", "ticket-service"),
	}
}

// ReserveTicket creates a reserved ticket and increments the event's sold
// counter in one transaction. The event row lock taken first serializes
// concurrent reservations, so tickets_sold can never pass total_tickets.
func (s *ticketService) ReserveTicket(ctx context.Context, userID, eventID uuid.UUID) (*models.Ticket, error) {
	var result *models.Ticket

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the event row — serializes concurrent reservation attempts
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		// 2. Caller identity must resolve to an existing user
		if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		// 3. Capacity check under the lock
		if event.IsSoldOut() {
			monitoring.SoldOutRejections.Inc()
			return ErrSoldOut
		}

		// 4. Create the reservation and bump the counter atomically
		expiresAt := s.now().Add(s.expiration)
		ticket := &models.Ticket{
			UserID:    userID,
			EventID:   eventID,
			Status:    models.TicketReserved,
			ExpiresAt: &expiresAt,
		}
		if err := s.ticketRepo.Create(ctx, tx, ticket); err != nil {
			return err
		}
		if err := s.eventRepo.IncrementTicketsSold(ctx, tx, eventID, 1); err != nil {
			return err
		}

		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TicketsReserved.Inc()

	// Outside the transaction: schedule the one-shot and persist its handle.
	// Failures here never fail the reservation; the sweep is the backstop.
	if s.scheduler != nil && result.ExpiresAt != nil {
		handle := s.scheduler.Schedule(result.ID, *result.ExpiresAt)
		if err := s.ticketRepo.UpdateExpirationTaskID(ctx, result.ID, handle); err != nil {
			s.log.WithError(err).WithField("ticket_id", result.ID).
				Warn("failed to persist expiration handle")
		} else {
			result.ExpirationTaskID = &handle
		}
	}

	if err := s.publisher.Publish(rabbitmq.KeyTicketReserved, result); err != nil {
		s.log.WithError(err).Warn("failed to publish ticket.reserved")
	}

	return result, nil
}

// PayTicket flips a reserved ticket to paid. It competes with the expire
// path on the ticket row lock; the loser sees a terminal state and fails
// cleanly. A stale-but-unswept reservation is rejected with
// ErrTicketExpired rather than expired inline — that transition belongs to
// the expire path alone.
func (s *ticketService) PayTicket(ctx context.Context, ticketID, callerID uuid.UUID) (*models.Ticket, error) {
	var result *models.Ticket
	var cancelHandle string

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, ticketID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		if ticket.UserID != callerID {
			return ErrForbidden
		}

		if ticket.Status != models.TicketReserved {
			return ErrInvalidTransition
		}

		now := s.now()
		if ticket.ExpiresAt != nil && now.After(*ticket.ExpiresAt) {
			return ErrTicketExpired
		}

		if err := s.ticketRepo.UpdateStatus(ctx, tx, ticketID, models.TicketPaid, &now); err != nil {
			return err
		}

		if ticket.ExpirationTaskID != nil {
			cancelHandle = *ticket.ExpirationTaskID
		}

		ticket.Status = models.TicketPaid
		ticket.PaidAt = &now
		ticket.ExpirationTaskID = nil
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TicketsPaid.Inc()

	// Best-effort: if the timer already fired, the expire operation's state
	// check will skip the paid ticket anyway.
	if s.scheduler != nil && cancelHandle != "" {
		s.scheduler.Cancel(cancelHandle)
	}

	if err := s.publisher.Publish(rabbitmq.KeyTicketPaid, result); err != nil {
		s.log.WithError(err).Warn("failed to publish ticket.paid")
	}

	return result, nil
}

// ExpireTicket releases a stale reservation back to inventory. Idempotent:
// redundant or concurrent invocations resolve to a non-error outcome.
// Lock order is ticket first, then event; reserve locks only the event and
// pay locks only the ticket, so no lock cycle exists across operations.
func (s *ticketService) ExpireTicket(ctx context.Context, ticketID uuid.UUID) (models.ExpireOutcome, error) {
	outcome := models.OutcomeExpired
	var expired *models.Ticket

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, ticketID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = models.OutcomeNotFound
				return nil
			}
			return err
		}

		if ticket.Status != models.TicketReserved {
			outcome = models.OutcomeSkipped
			return nil
		}

		if ticket.ExpiresAt != nil && s.now().Before(*ticket.ExpiresAt) {
			outcome = models.OutcomeNotYetExpired
			return nil
		}

		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, ticket.EventID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if event != nil {
			if event.TicketsSold <= 0 {
				// Decrement would clamp: the counter drifted from the true
				// reserved+paid count.
				monitoring.CounterClamps.Inc()
				s.log.WithField("event_id", event.ID).
					Warn("tickets_sold already zero while expiring a reservation")
			}
			if err := s.eventRepo.DecrementTicketsSold(ctx, tx, event.ID, 1); err != nil {
				return err
			}
		}

		if err := s.ticketRepo.UpdateStatus(ctx, tx, ticketID, models.TicketExpired, nil); err != nil {
			return err
		}

		ticket.Status = models.TicketExpired
		ticket.ExpirationTaskID = nil
		expired = ticket
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == models.OutcomeExpired {
		if err := s.publisher.Publish(rabbitmq.KeyTicketExpired, expired); err != nil {
			s.log.WithError(err).Warn("failed to publish ticket.expired")
		}
	}

	return outcome, nil
}

// ExpireDueTickets is the sweep body: finds stale reservations in a bounded
// batch and runs the expire operation on each. One ticket failing does not
// abort the rest.
func (s *ticketService) ExpireDueTickets(ctx context.Context) (int, error) {
	monitoring.SweepRuns.Inc()

	stale, err := s.ticketRepo.FindExpired(ctx, s.now(), s.sweepBatchSize)
	if err != nil {
		return 0, err
	}
	monitoring.SweepBatchSize.Observe(float64(len(stale)))

	expired := 0
	for _, ticket := range stale {
		outcome, err := s.ExpireTicket(ctx, ticket.ID)
		if err != nil {
			s.log.WithError(err).WithField("ticket_id", ticket.ID).
				Warn("sweep failed to expire ticket")
			continue
		}
		if outcome == models.OutcomeExpired {
			monitoring.TicketsExpired.WithLabelValues("sweep").Inc()
			expired++
		}
	}
	return expired, nil
}

func (s *ticketService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, ticketID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *ticketService) ListUserTickets(ctx context.Context, userID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error) {
	return s.ticketRepo.FindByUser(ctx, userID, status, skip, limit)
}

func (s *ticketService) ListEventTickets(ctx context.Context, eventID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error) {
	return s.ticketRepo.FindByEvent(ctx, eventID, status, skip, limit)
}
