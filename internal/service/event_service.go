package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/repository"
	"github.com/nearbytix/nearbytix/pkg/rabbitmq"
)

var (
	ErrInvalidTicketCount = errors.New("total_tickets must be positive")
	ErrInvalidTimeRange   = errors.New("start_time must be before end_time")
	ErrNotEventCreator    = errors.New("only the event creator can update it")
)

type EventService interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, skip, limit int, upcomingOnly bool) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id, callerID uuid.UUID, apply func(*models.Event)) (*models.Event, error)
}

type eventService struct {
	repo      repository.EventRepository
	publisher *rabbitmq.Publisher
	log       *logrus.Entry
}

func NewEventService(repo repository.EventRepository, publisher *rabbitmq.Publisher) EventService {
	return &eventService{
		repo:      repo,
		publisher: publisher,
		log:       logrus.WithField("component", "event-service"),
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.TotalTickets <= 0 {
		return ErrInvalidTicketCount
	}
	if !event.StartTime.Before(event.EndTime) {
		return ErrInvalidTimeRange
	}
	event.TicketsSold = 0

	if err := s.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	if err := s.publisher.Publish(rabbitmq.KeyEventCreated, event); err != nil {
		s.log.WithError(err).Warn("failed to publish event.created")
	}
	return nil
}

func (s *eventService) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, skip, limit int, upcomingOnly bool) ([]models.Event, error) {
	return s.repo.FindAll(ctx, skip, limit, upcomingOnly)
}

// UpdateEvent applies a metadata mutation to an event owned by callerID.
// The write goes through UpdateDetails, which never touches TicketsSold:
// the snapshot read here may already be stale against a concurrent
// reservation, and writing the counter back would erase that increment.
func (s *eventService) UpdateEvent(ctx context.Context, id, callerID uuid.UUID, apply func(*models.Event)) (*models.Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != callerID {
		return nil, ErrNotEventCreator
	}

	apply(event)

	if event.TotalTickets <= 0 {
		return nil, ErrInvalidTicketCount
	}
	if !event.StartTime.Before(event.EndTime) {
		return nil, ErrInvalidTimeRange
	}

	if err := s.repo.UpdateDetails(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if err := s.publisher.Publish(rabbitmq.KeyEventUpdated, event); err != nil {
		s.log.WithError(err).Warn("failed to publish event.updated")
	}
	return event, nil
}
