package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nearbytix/nearbytix/internal/models"
)

type TicketRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID, withRelations bool) (*models.Ticket, error)

	// FindByIDForUpdate acquires a row-level lock on the ticket within the
	// given transaction. Pay and expire both go through this, so whichever
	// acquires the lock first strictly precedes the other.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ticket, error)

	// UpdateStatus must only be called while the ticket row lock from
	// FindByIDForUpdate is held in the same transaction.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.TicketStatus, paidAt *time.Time) error

	// UpdateExpirationTaskID persists the one-shot handle after the
	// reservation has committed. Best-effort follow-up write.
	UpdateExpirationTaskID(ctx context.Context, id uuid.UUID, taskID string) error

	// FindExpired returns reserved tickets whose expiry has passed, bounded
	// by limit. Rows are not locked here; the expire operation re-locks each
	// ticket individually.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error)

	FindByUser(ctx context.Context, userID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error)
	FindByEvent(ctx context.Context, eventID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error)

	GetDB() *gorm.DB
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *ticketRepository) Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error {
	return tx.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID, withRelations bool) (*models.Ticket, error) {
	var ticket models.Ticket
	q := r.db.WithContext(ctx)
	if withRelations {
		q = q.Preload("User").Preload("Event")
	}
	if err := q.First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.TicketStatus, paidAt *time.Time) error {
	updates := map[string]any{"status": status}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	// The one-shot handle only means something on a reserved ticket.
	if status != models.TicketReserved {
		updates["expiration_task_id"] = nil
	}
	return tx.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *ticketRepository) UpdateExpirationTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		Update("expiration_task_id", taskID).Error
}

func (r *ticketRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.TicketReserved, now).
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindByUser(ctx context.Context, userID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error) {
	return r.findBy(ctx, "user_id = ?", userID, status, skip, limit)
}

func (r *ticketRepository) FindByEvent(ctx context.Context, eventID uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error) {
	return r.findBy(ctx, "event_id = ?", eventID, status, skip, limit)
}

func (r *ticketRepository) findBy(ctx context.Context, cond string, id uuid.UUID, status *models.TicketStatus, skip, limit int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := r.db.WithContext(ctx).
		Preload("Event").
		Where(cond, id).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
