//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/repository"
	"github.com/nearbytix/nearbytix/internal/service"
)

// A metadata update carrying a stale tickets_sold snapshot must not write
// the counter back: only the ticket lifecycle owns it.
func TestUpdateDetailsLeavesCounterAlone(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Stale Snapshot Show", 10)
	eventRepo := repository.NewEventRepository(testDB)

	// Counter moves after the snapshot above was taken
	require.NoError(t, eventRepo.IncrementTicketsSold(context.Background(), testDB, event.ID, 3))

	stale := *event // TicketsSold still 0 in here
	stale.Title = "Renamed Show"
	require.NoError(t, eventRepo.UpdateDetails(context.Background(), &stale))

	current := eventState(t, event.ID)
	assert.Equal(t, "Renamed Show", current.Title)
	assert.Equal(t, 3, current.TicketsSold)
}

func TestUpdateEventPreservesReservations(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Busy Show", 2)
	user := createTestUser(t, "alice@example.com")

	eventRepo := repository.NewEventRepository(testDB)
	eventSvc := service.NewEventService(eventRepo, nil)
	ticketSvc := newTicketService(2 * time.Minute)

	_, err := ticketSvc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	updated, err := eventSvc.UpdateEvent(context.Background(), event.ID, event.CreatorID, func(e *models.Event) {
		e.Description = "now with fresh description"
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TicketsSold)
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)

	// Capacity accounting still holds after the update
	_, err = ticketSvc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	_, err = ticketSvc.ReserveTicket(context.Background(), user.ID, event.ID)
	assert.ErrorIs(t, err, service.ErrSoldOut)
}

func TestUpdateEvent_WrongCaller(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Guarded Show", 5)
	eventSvc := service.NewEventService(repository.NewEventRepository(testDB), nil)

	_, err := eventSvc.UpdateEvent(context.Background(), event.ID, uuid.New(), func(e *models.Event) {
		e.Title = "Hijacked"
	})
	assert.ErrorIs(t, err, service.ErrNotEventCreator)
	assert.Equal(t, "Guarded Show", eventState(t, event.ID).Title)
}
