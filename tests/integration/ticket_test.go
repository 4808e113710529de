//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/repository"
	"github.com/nearbytix/nearbytix/internal/service"
)

func createTestUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:           "Test User",
		Email:          email,
		HashedPassword: "x",
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createTestEvent(t *testing.T, title string, totalTickets int) *models.Event {
	t.Helper()
	start := time.Now().Add(24 * time.Hour)
	event := &models.Event{
		CreatorID:    uuid.New(),
		Title:        title,
		StartTime:    start,
		EndTime:      start.Add(3 * time.Hour),
		VenueName:    "Test Hall",
		AddressLine1: "1 Test St",
		City:         "Lisbon",
		State:        "Lisbon",
		Country:      "PT",
		PostalCode:   "1000-001",
		TotalTickets: totalTickets,
	}
	require.NoError(t, testDB.Create(event).Error)
	return event
}

func newTicketService(expiration time.Duration) service.TicketService {
	return newTicketServiceWithScheduler(expiration, nil)
}

func newTicketServiceWithScheduler(expiration time.Duration, sched service.ExpirationScheduler) service.TicketService {
	ticketRepo := repository.NewTicketRepository(testDB)
	eventRepo := repository.NewEventRepository(testDB)
	userRepo := repository.NewUserRepository(testDB)
	return service.NewTicketService(ticketRepo, eventRepo, userRepo, sched, nil, expiration, 100)
}

// stubScheduler hands out handles without arming timers, so tests control
// when expiration actually runs.
type stubScheduler struct{}

func (stubScheduler) Schedule(uuid.UUID, time.Time) string { return uuid.NewString() }
func (stubScheduler) Cancel(string)                        {}

func eventState(t *testing.T, id uuid.UUID) *models.Event {
	t.Helper()
	var event models.Event
	require.NoError(t, testDB.First(&event, "id = ?", id).Error)
	return &event
}

// 50 users race for 10 tickets: exactly 10 reservations succeed, the other
// 40 see sold out, and the counter lands exactly on capacity.
func TestConcurrentReservations(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Sold Out Show", 10)
	svc := newTicketService(2 * time.Minute)

	totalUsers := 50
	users := make([]*models.User, totalUsers)
	for i := range users {
		users[i] = createTestUser(t, uuid.NewString()+"@example.com")
	}

	var wg sync.WaitGroup
	results := make(chan *models.Ticket, totalUsers)
	errs := make(chan error, totalUsers)

	wg.Add(totalUsers)
	for i := 0; i < totalUsers; i++ {
		go func(user *models.User) {
			defer wg.Done()
			ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
			if err != nil {
				errs <- err
				return
			}
			results <- ticket
		}(users[i])
	}
	wg.Wait()
	close(results)
	close(errs)

	reserved := 0
	for range results {
		reserved++
	}
	soldOut := 0
	for err := range errs {
		require.ErrorIs(t, err, service.ErrSoldOut)
		soldOut++
	}

	assert.Equal(t, 10, reserved)
	assert.Equal(t, 40, soldOut)
	assert.Equal(t, 10, eventState(t, event.ID).TicketsSold)
}

func TestReserveLastTicket(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Tiny Show", 1)
	svc := newTicketService(2 * time.Minute)

	alice := createTestUser(t, "alice@example.com")
	bob := createTestUser(t, "bob@example.com")

	ticket, err := svc.ReserveTicket(context.Background(), alice.ID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketReserved, ticket.Status)
	require.NotNil(t, ticket.ExpiresAt)

	_, err = svc.ReserveTicket(context.Background(), bob.ID, event.ID)
	assert.ErrorIs(t, err, service.ErrSoldOut)
}

func TestReserve_UnknownEventAndUser(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	_, err := svc.ReserveTicket(context.Background(), user.ID, uuid.New())
	assert.ErrorIs(t, err, service.ErrEventNotFound)

	_, err = svc.ReserveTicket(context.Background(), uuid.New(), event.ID)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	// Neither failure may touch the counter
	assert.Equal(t, 0, eventState(t, event.ID).TicketsSold)
}

func TestPayWithinWindow(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	paid, err := svc.PayTicket(context.Background(), ticket.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	// Paying keeps the ticket counted against capacity
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)
}

func TestPay_WrongOwner(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	alice := createTestUser(t, "alice@example.com")
	mallory := createTestUser(t, "mallory@example.com")
	svc := newTicketService(2 * time.Minute)

	ticket, err := svc.ReserveTicket(context.Background(), alice.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.PayTicket(context.Background(), ticket.ID, mallory.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestPay_Twice(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.PayTicket(context.Background(), ticket.ID, user.ID)
	require.NoError(t, err)

	_, err = svc.PayTicket(context.Background(), ticket.ID, user.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestPay_AfterExpiryWindow(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(50 * time.Millisecond)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	// Stale but not yet swept: payment is rejected, the ticket stays
	// reserved until the expire path releases it.
	_, err = svc.PayTicket(context.Background(), ticket.ID, user.ID)
	assert.ErrorIs(t, err, service.ErrTicketExpired)

	var current models.Ticket
	require.NoError(t, testDB.First(&current, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketReserved, current.Status)
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)
}

func TestExpireReleasesInventory(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 1)
	alice := createTestUser(t, "alice@example.com")
	bob := createTestUser(t, "bob@example.com")
	svc := newTicketService(50 * time.Millisecond)

	ticket, err := svc.ReserveTicket(context.Background(), alice.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.ReserveTicket(context.Background(), bob.ID, event.ID)
	require.ErrorIs(t, err, service.ErrSoldOut)

	time.Sleep(100 * time.Millisecond)

	outcome, err := svc.ExpireTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExpired, outcome)
	assert.Equal(t, 0, eventState(t, event.ID).TicketsSold)

	// The released ticket is reservable again
	retry, err := svc.ReserveTicket(context.Background(), bob.ID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketReserved, retry.Status)
}

func TestExpire_Idempotent(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(50 * time.Millisecond)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	outcome, err := svc.ExpireTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExpired, outcome)

	// Second invocation must not decrement again
	outcome, err = svc.ExpireTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome)
	assert.Equal(t, 0, eventState(t, event.ID).TicketsSold)
}

func TestExpire_PaidTicketSkipped(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	_, err = svc.PayTicket(context.Background(), ticket.ID, user.ID)
	require.NoError(t, err)

	outcome, err := svc.ExpireTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome)
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)
}

func TestExpire_NotYetDue(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	outcome, err := svc.ExpireTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotYetExpired, outcome)
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)
}

func TestExpire_UnknownTicket(t *testing.T) {
	cleanTables()
	svc := newTicketService(2 * time.Minute)

	outcome, err := svc.ExpireTicket(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotFound, outcome)
}

func TestSweepExpiresDueReservations(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 10)
	svc := newTicketService(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		user := createTestUser(t, uuid.NewString()+"@example.com")
		_, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
		require.NoError(t, err)
	}

	// One reservation gets paid before the window closes
	payer := createTestUser(t, "payer@example.com")
	paidTicket, err := svc.ReserveTicket(context.Background(), payer.ID, event.ID)
	require.NoError(t, err)
	_, err = svc.PayTicket(context.Background(), paidTicket.ID, payer.ID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	expired, err := svc.ExpireDueTickets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	assert.Equal(t, 1, eventState(t, event.ID).TicketsSold)

	// A second sweep finds nothing
	expired, err = svc.ExpireDueTickets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

// Payment and expiration race on the same reservation: whoever takes the
// ticket row lock second sees a terminal state and backs off, and the
// counter stays consistent either way.
func TestPayExpireRace(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(50 * time.Millisecond)

	ticket, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	var wg sync.WaitGroup
	var payErr error
	var outcome models.ExpireOutcome

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, payErr = svc.PayTicket(context.Background(), ticket.ID, user.ID)
	}()
	go func() {
		defer wg.Done()
		outcome, _ = svc.ExpireTicket(context.Background(), ticket.ID)
	}()
	wg.Wait()

	// The reservation is past its window, so payment loses no matter the
	// interleaving: either it saw the stale window or the expired state.
	require.Error(t, payErr)
	assert.Contains(t, []models.ExpireOutcome{models.OutcomeExpired, models.OutcomeSkipped}, outcome)

	var current models.Ticket
	require.NoError(t, testDB.First(&current, "id = ?", ticket.ID).Error)
	if current.Status == models.TicketExpired {
		assert.Equal(t, 0, eventState(t, event.ID).TicketsSold)
	}
}

// The one-shot handle lives only on reserved tickets: both terminal
// transitions must null it out.
func TestTerminalTicketClearsExpirationHandle(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 5)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketServiceWithScheduler(2*time.Minute, stubScheduler{})

	reload := func(id uuid.UUID) *models.Ticket {
		var ticket models.Ticket
		require.NoError(t, testDB.First(&ticket, "id = ?", id).Error)
		return &ticket
	}

	paid, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	require.NotNil(t, reload(paid.ID).ExpirationTaskID)

	result, err := svc.PayTicket(context.Background(), paid.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, result.ExpirationTaskID)
	assert.Nil(t, reload(paid.ID).ExpirationTaskID)

	stale, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	require.NotNil(t, reload(stale.ID).ExpirationTaskID)

	// Backdate the window instead of sleeping it out
	require.NoError(t, testDB.Model(&models.Ticket{}).
		Where("id = ?", stale.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	outcome, err := svc.ExpireTicket(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeExpired, outcome)
	assert.Nil(t, reload(stale.ID).ExpirationTaskID)
}

func TestListTickets(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Show", 10)
	user := createTestUser(t, "alice@example.com")
	svc := newTicketService(2 * time.Minute)

	first, err := svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	_, err = svc.ReserveTicket(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	_, err = svc.PayTicket(context.Background(), first.ID, user.ID)
	require.NoError(t, err)

	all, err := svc.ListUserTickets(context.Background(), user.ID, nil, 0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid := models.TicketPaid
	onlyPaid, err := svc.ListUserTickets(context.Background(), user.ID, &paid, 0, 100)
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)
	assert.Equal(t, first.ID, onlyPaid[0].ID)

	byEvent, err := svc.ListEventTickets(context.Background(), event.ID, nil, 0, 100)
	require.NoError(t, err)
	assert.Len(t, byEvent, 2)
}
