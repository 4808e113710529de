package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketReserved TicketStatus = "reserved"
	TicketPaid     TicketStatus = "paid"
	TicketExpired  TicketStatus = "expired"
)

// ExpireOutcome reports what an expire invocation actually did. Redundant
// invocations (scheduler redelivery, sweep racing the one-shot) resolve to
// Skipped or NotFound rather than errors.
type ExpireOutcome string

const (
	OutcomeExpired       ExpireOutcome = "expired"
	OutcomeSkipped       ExpireOutcome = "skipped"
	OutcomeNotFound      ExpireOutcome = "not_found"
	OutcomeNotYetExpired ExpireOutcome = "not_yet_expired"
)

type Ticket struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index:idx_ticket_user_event" json:"user_id"`
	EventID uuid.UUID `gorm:"type:uuid;not null;index:idx_ticket_user_event;index" json:"event_id"`

	Status TicketStatus `gorm:"type:varchar(20);not null;default:'reserved';index" json:"status"`

	// Handle of the pending one-shot expiration, present only while the
	// ticket is reserved. Best-effort: the sweep does not depend on it.
	ExpirationTaskID *string `json:"expiration_task_id,omitempty"`

	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsExpiredAt reports whether a reserved ticket is past its expiry at the
// given instant. The expiry instant itself is still valid: payment is
// rejected only when now is strictly after ExpiresAt.
func (t *Ticket) IsExpiredAt(now time.Time) bool {
	if t.Status != TicketReserved || t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}

func (t *Ticket) IsReserved() bool {
	return t.Status == TicketReserved
}

func (t *Ticket) IsPaid() bool {
	return t.Status == TicketPaid
}
