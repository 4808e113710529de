package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nearbytix/nearbytix/internal/models"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindAll(ctx context.Context, skip, limit int, upcomingOnly bool) ([]models.Event, error)

	// UpdateDetails persists the event's metadata columns only. TicketsSold
	// is deliberately excluded: it belongs to the ticket lifecycle, and a
	// full-row write here would race a concurrent reserve or expire and
	// rewind the counter.
	UpdateDetails(ctx context.Context, event *models.Event) error

	// FindByIDForUpdate acquires a row-level lock on the event within the
	// given transaction. Every writer of TicketsSold must go through this.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)

	// IncrementTicketsSold and DecrementTicketsSold must only be called while
	// the event row lock from FindByIDForUpdate is held in the same
	// transaction. Decrement clamps at zero.
	IncrementTicketsSold(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error
	DecrementTicketsSold(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error

	GetDB() *gorm.DB
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindAll(ctx context.Context, skip, limit int, upcomingOnly bool) ([]models.Event, error) {
	var events []models.Event
	q := r.db.WithContext(ctx).Order("start_time ASC").Offset(skip).Limit(limit)
	if upcomingOnly {
		q = q.Where("start_time > NOW()")
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) UpdateDetails(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", event.ID).
		Select(
			"title", "description", "start_time", "end_time", "total_tickets",
			"latitude", "longitude", "venue_name", "address_line1", "address_line2",
			"city", "state", "country", "postal_code", "updated_at",
		).
		Updates(event).Error
}

// FindByIDForUpdate acquires a row-level lock on the event within the given transaction.
func (r *eventRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) IncrementTicketsSold(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error {
	return tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		UpdateColumn("tickets_sold", gorm.Expr("tickets_sold + ?", n)).Error
}

func (r *eventRepository) DecrementTicketsSold(ctx context.Context, tx *gorm.DB, id uuid.UUID, n int) error {
	return tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		UpdateColumn("tickets_sold", gorm.Expr("GREATEST(tickets_sold - ?, 0)", n)).Error
}
