package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/service"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EventResponse struct {
	ID               uuid.UUID `json:"id"`
	CreatorID        uuid.UUID `json:"creator_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	VenueName        string    `json:"venue_name"`
	AddressLine1     string    `json:"address_line1"`
	AddressLine2     *string   `json:"address_line2,omitempty"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Country          string    `json:"country"`
	PostalCode       string    `json:"postal_code"`
	TotalTickets     int       `json:"total_tickets"`
	TicketsSold      int       `json:"tickets_sold"`
	TicketsAvailable int       `json:"tickets_available"`
	IsSoldOut        bool      `json:"is_sold_out"`
	CreatedAt        time.Time `json:"created_at"`
}

type TicketResponse struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	EventID          uuid.UUID           `json:"event_id"`
	Status           models.TicketStatus `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	EventTitle       string              `json:"event_title,omitempty"`
	EventStartTime   *time.Time          `json:"event_start_time,omitempty"`
	EventVenueName   string              `json:"event_venue_name,omitempty"`
	EventCity        string              `json:"event_city,omitempty"`
}

type TicketListResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Total   int              `json:"total"`
	Skip    int              `json:"skip"`
	Limit   int              `json:"limit"`
}

type RecommendationResponse struct {
	Event      EventResponse `json:"event"`
	DistanceKM float64       `json:"distance_km"`
}

type RecommendationListResponse struct {
	Recommendations []RecommendationResponse `json:"recommendations"`
	RadiusKM        float64                  `json:"radius_km"`
	Total           int                      `json:"total"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
		CreatedAt: u.CreatedAt,
	}
}

func ToEventResponse(e *models.Event) EventResponse {
	return EventResponse{
		ID:               e.ID,
		CreatorID:        e.CreatorID,
		Title:            e.Title,
		Description:      e.Description,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		VenueName:        e.VenueName,
		AddressLine1:     e.AddressLine1,
		AddressLine2:     e.AddressLine2,
		City:             e.City,
		State:            e.State,
		Country:          e.Country,
		PostalCode:       e.PostalCode,
		TotalTickets:     e.TotalTickets,
		TicketsSold:      e.TicketsSold,
		TicketsAvailable: e.TicketsAvailable(),
		IsSoldOut:        e.IsSoldOut(),
		CreatedAt:        e.CreatedAt,
	}
}

func ToTicketResponse(t *models.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		EventID:   t.EventID,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		PaidAt:    t.PaidAt,
	}
	if t.Event != nil {
		resp.EventTitle = t.Event.Title
		start := t.Event.StartTime
		resp.EventStartTime = &start
		resp.EventVenueName = t.Event.VenueName
		resp.EventCity = t.Event.City
	}
	return resp
}

func ToTicketListResponse(tickets []models.Ticket, skip, limit int) TicketListResponse {
	items := make([]TicketResponse, len(tickets))
	for i := range tickets {
		items[i] = ToTicketResponse(&tickets[i])
	}
	return TicketListResponse{
		Tickets: items,
		Total:   len(items),
		Skip:    skip,
		Limit:   limit,
	}
}

func ToRecommendationListResponse(recs []service.RecommendedEvent, radiusKM float64) RecommendationListResponse {
	items := make([]RecommendationResponse, len(recs))
	for i := range recs {
		items[i] = RecommendationResponse{
			Event:      ToEventResponse(&recs[i].Event),
			DistanceKM: recs[i].DistanceKM,
		}
	}
	return RecommendationListResponse{
		Recommendations: items,
		RadiusKM:        radiusKM,
		Total:           len(items),
	}
}
