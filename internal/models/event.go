package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"creator_id"`

	Title       string `gorm:"not null;index" json:"title"`
	Description string `json:"description,omitempty"`

	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	// Venue: geocoded point plus address components.
	Latitude     float64 `gorm:"not null" json:"latitude"`
	Longitude    float64 `gorm:"not null" json:"longitude"`
	VenueName    string  `gorm:"not null" json:"venue_name"`
	AddressLine1 string  `gorm:"not null" json:"address_line1"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         string  `gorm:"not null" json:"city"`
	State        string  `gorm:"not null" json:"state"`
	Country      string  `gorm:"not null" json:"country"`
	PostalCode   string  `gorm:"not null" json:"postal_code"`

	// Ticket inventory. TicketsSold is written only by the ticket lifecycle
	// (incremented on reserve, decremented on expire) under a row lock.
	TotalTickets int `gorm:"not null;check:total_tickets > 0" json:"total_tickets"`
	TicketsSold  int `gorm:"not null;default:0;check:tickets_sold >= 0" json:"tickets_sold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *Event) TicketsAvailable() int {
	return e.TotalTickets - e.TicketsSold
}

func (e *Event) IsSoldOut() bool {
	return e.TicketsSold >= e.TotalTickets
}

func (e *Event) IsUpcoming(now time.Time) bool {
	return e.StartTime.After(now)
}
