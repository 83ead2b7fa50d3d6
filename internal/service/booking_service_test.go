package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/grounds"
	"slotbook/internal/models"
	"slotbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testDate = "2024-06-01"
	slot9    = "09:00 - 10:00"
	slot10   = "10:00 - 11:00"
	slot11   = "11:00 - 12:00"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DayLedger), args.Error(1)
}

func (m *mockStore) LoadRange(ctx context.Context, from, to string) (models.Ledger, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Ledger), args.Error(1)
}

func (m *mockStore) UpdateDay(ctx context.Context, date string, fn domain.DayMutation) (*models.DayLedger, error) {
	args := m.Called(ctx, date, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DayLedger), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	types  []string
	values []interface{}
	err    error
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	p.values = append(p.values, payload)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
}

func testOptions() Options {
	n := 0
	return Options{
		MinMobileDigits: 10,
		MaxAdvanceDays:  30,
		Location:        time.UTC,
		Now:             fixedNow,
		NewID: func() string {
			n++
			return "id-" + string(rune('a'+n-1))
		},
	}
}

func newTestService(t *testing.T) (*BookingService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewBookingService(repository.NewMemoryLedgerStore(), grounds.Default(), pub, testOptions(), nil)
	return svc, pub
}

func aliceRequest(sport string, slots ...string) models.BookingRequest {
	return models.BookingRequest{
		Date:     testDate,
		Slots:    slots,
		Sport:    sport,
		Customer: models.Customer{Name: "Alice", Mobile: "9876543210"},
	}
}

func availableFor(t *testing.T, svc *BookingService, sport, slot string) bool {
	t.Helper()
	views, err := svc.DaySlots(context.Background(), testDate, sport)
	require.NoError(t, err)
	for _, v := range views {
		if v.Label == slot {
			return v.Available
		}
	}
	t.Fatalf("slot %s not in view", slot)
	return false
}

func TestBookScenario(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	batch, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)
	require.Len(t, batch.Bookings, 1)
	assert.Equal(t, grounds.MainTurf, batch.Ground)
	assert.Equal(t, "Alice", batch.Customer.Name)
	assert.Equal(t, fixedNow(), batch.CreatedAt)

	assert.False(t, availableFor(t, svc, "cricket", slot9))
	assert.False(t, availableFor(t, svc, "football", slot9))
	assert.True(t, availableFor(t, svc, "pickleball", slot9))
	assert.True(t, availableFor(t, svc, "cricket", slot10))

	assert.Equal(t, []string{events.EventBookingCreated}, pub.Types())
	payload := pub.values[0].(events.BookingEventPayload)
	assert.Equal(t, batch.ID, payload.BatchID)
	assert.Equal(t, []string{slot9}, payload.Slots)
	assert.Equal(t, int64(1), payload.Version)
}

func TestBookSharesBatchID(t *testing.T) {
	svc, _ := newTestService(t)

	batch, err := svc.Book(context.Background(), aliceRequest(" Pickleball ", slot11, slot9))
	require.NoError(t, err)

	require.Len(t, batch.Bookings, 2)
	assert.Equal(t, []string{slot9, slot11}, batch.Slots())
	for _, b := range batch.Bookings {
		assert.Equal(t, batch.ID, b.BatchID)
		assert.Equal(t, "pickleball", b.Sport)
		assert.Equal(t, grounds.PickleballCourt, b.Ground)
	}
	assert.NotEqual(t, batch.Bookings[0].ID, batch.Bookings[1].ID)

	stored, err := svc.GetBatch(context.Background(), testDate, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Slots(), stored.Slots())
}

func TestBookAllOrNothing(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("cricket", slot10))
	require.NoError(t, err)

	_, err = svc.Book(ctx, models.BookingRequest{
		Date:     testDate,
		Slots:    []string{slot9, slot10, slot11},
		Sport:    "football",
		Customer: models.Customer{Name: "Bob", Mobile: "+91 (987) 654-3210"},
	})
	require.Error(t, err)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{slot10}, conflict.Slots)

	day, err := svc.LoadDay(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, day.Bookings, 1, "a rejected batch must leave the day untouched")
	assert.True(t, availableFor(t, svc, "football", slot9))
	assert.True(t, availableFor(t, svc, "football", slot11))
	assert.Len(t, pub.Types(), 1)
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   models.BookingRequest
		field string
	}{
		{name: "missing date", req: models.BookingRequest{Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "date"},
		{name: "bad date", req: models.BookingRequest{Date: "01/06/2024", Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "date"},
		{name: "too far ahead", req: models.BookingRequest{Date: "2024-08-01", Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "date"},
		{name: "no slots", req: models.BookingRequest{Date: testDate, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "slots"},
		{name: "unknown slot", req: models.BookingRequest{Date: testDate, Slots: []string{"09:30 - 10:30"}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "slots"},
		{name: "duplicate slot", req: models.BookingRequest{Date: testDate, Slots: []string{slot9, slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "slots"},
		{name: "missing sport", req: models.BookingRequest{Date: testDate, Slots: []string{slot9}, Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "sport"},
		{name: "unknown sport", req: models.BookingRequest{Date: testDate, Slots: []string{slot9}, Sport: "curling", Customer: models.Customer{Name: "A", Mobile: "9876543210"}}, field: "sport"},
		{name: "blank name", req: models.BookingRequest{Date: testDate, Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "   ", Mobile: "9876543210"}}, field: "name"},
		{name: "short mobile", req: models.BookingRequest{Date: testDate, Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "123"}}, field: "mobile"},
		{name: "letters in mobile", req: models.BookingRequest{Date: testDate, Slots: []string{slot9}, Sport: "football", Customer: models.Customer{Name: "A", Mobile: "98765x43210"}}, field: "mobile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			svc := NewBookingService(store, grounds.Default(), nil, testOptions(), nil)

			_, err := svc.Book(context.Background(), tt.req)
			require.Error(t, err)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			store.AssertNotCalled(t, "UpdateDay", mock.Anything, mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "LoadDay", mock.Anything, mock.Anything)
		})
	}
}

func TestBookPastDates(t *testing.T) {
	req := aliceRequest("football", slot9)
	req.Date = "2024-01-15"

	svc := NewBookingService(repository.NewMemoryLedgerStore(), grounds.Default(), nil, testOptions(), nil)
	_, err := svc.Book(context.Background(), req)
	assert.NoError(t, err, "past dates are accepted unless rejection is enabled")

	opts := testOptions()
	opts.RejectPastDates = true
	store := &mockStore{}
	svc = NewBookingService(store, grounds.Default(), nil, opts, nil)
	_, err = svc.Book(context.Background(), req)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "date", verr.Field)
	store.AssertNotCalled(t, "UpdateDay", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookScenarioWithShippedConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	opts, err := OptionsFromConfig(cfg.Booking)
	require.NoError(t, err)
	reg, err := grounds.NewRegistry(cfg.Venue)
	require.NoError(t, err)

	svc := NewBookingService(repository.NewMemoryLedgerStore(), reg, nil, opts, nil)
	ctx := context.Background()

	batch, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)
	assert.Len(t, batch.Bookings, 1)

	_, err = svc.Book(ctx, aliceRequest("cricket", slot9))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = svc.Book(ctx, aliceRequest("pickleball", slot9))
	assert.NoError(t, err)
}

func TestBookStoreError(t *testing.T) {
	store := &mockStore{}
	store.On("UpdateDay", mock.Anything, testDate, mock.Anything).Return(nil, errors.New("disk full"))
	pub := &recordingPublisher{}
	svc := NewBookingService(store, grounds.Default(), pub, testOptions(), nil)

	_, err := svc.Book(context.Background(), aliceRequest("football", slot9))
	require.Error(t, err)
	assert.Equal(t, "internal", domain.Kind(err))
	assert.Empty(t, pub.Types())
	store.AssertExpectations(t)
}

func TestBookPublishErrorDoesNotFail(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	svc := NewBookingService(repository.NewMemoryLedgerStore(), grounds.Default(), pub, testOptions(), nil)

	_, err := svc.Book(context.Background(), aliceRequest("football", slot9))
	assert.NoError(t, err)
}

func TestCancelRestoresAvailability(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)
	require.False(t, availableFor(t, svc, "cricket", slot9))

	res, err := svc.Cancel(ctx, models.CancelRequest{Date: testDate, Slot: slot9, Sport: "Football", CustomerName: "  alice "})
	require.NoError(t, err)
	assert.Len(t, res.Cancelled, 1)
	assert.True(t, availableFor(t, svc, "cricket", slot9))
	assert.Equal(t, []string{events.EventBookingCreated, events.EventBookingCancelled}, pub.Types())

	_, err = svc.Cancel(ctx, models.CancelRequest{Date: testDate, Slot: slot9, Sport: "football", CustomerName: "Alice"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancelMatchesAllFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("pickleball", slot9))
	require.NoError(t, err)
	bob := aliceRequest("football", slot9)
	bob.Customer.Name = "Bob"
	_, err = svc.Book(ctx, bob)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, models.CancelRequest{Date: testDate, Slot: slot9, Sport: "football", CustomerName: "Alice"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	res, err := svc.Cancel(ctx, models.CancelRequest{Date: testDate, Slot: slot9, Sport: "football", CustomerName: "Bob"})
	require.NoError(t, err)
	require.Len(t, res.Cancelled, 1)
	assert.Equal(t, "Bob", res.Cancelled[0].CustomerName)

	day, err := svc.LoadDay(ctx, testDate)
	require.NoError(t, err)
	require.Len(t, day.Bookings, 1)
	assert.Equal(t, "pickleball", day.Bookings[0].Sport)
}

func TestCancelByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch, err := svc.Book(ctx, aliceRequest("football", slot9, slot10))
	require.NoError(t, err)

	res, err := svc.CancelByID(ctx, testDate, batch.Bookings[1].ID)
	require.NoError(t, err)
	require.Len(t, res.Cancelled, 1)
	assert.Equal(t, slot10, res.Cancelled[0].Slot)
	assert.True(t, availableFor(t, svc, "cricket", slot10))
	assert.False(t, availableFor(t, svc, "cricket", slot9))

	_, err = svc.CancelByID(ctx, testDate, batch.Bookings[1].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.CancelByID(ctx, testDate, "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestBlockThenBook(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	state, err := svc.Block(ctx, testDate, slot10)
	require.NoError(t, err)
	assert.True(t, state.Blocked)

	for _, sport := range []string{"football", "cricket", "pickleball", "stitchball"} {
		assert.False(t, availableFor(t, svc, sport, slot10), sport)
	}

	_, err = svc.Book(ctx, aliceRequest("pickleball", slot10))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = svc.Unblock(ctx, testDate, slot10)
	require.NoError(t, err)

	_, err = svc.Book(ctx, aliceRequest("pickleball", slot10))
	assert.NoError(t, err)

	assert.Equal(t, []string{events.EventSlotBlocked, events.EventSlotUnblocked, events.EventBookingCreated}, pub.Types())
}

func TestBlockIdempotent(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Block(ctx, testDate, slot10)
	require.NoError(t, err)
	state, err := svc.Block(ctx, testDate, slot10)
	require.NoError(t, err)
	assert.True(t, state.Blocked)

	day, err := svc.LoadDay(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, day.Blocks, 1)
	assert.Equal(t, int64(1), day.Version)
	assert.Len(t, pub.Types(), 1)
}

func TestUnblockMissing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Unblock(context.Background(), testDate, slot10)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestToggleBlock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.ToggleBlock(ctx, testDate, slot11)
	require.NoError(t, err)
	assert.True(t, state.Blocked)
	assert.False(t, availableFor(t, svc, "football", slot11))

	state, err = svc.ToggleBlock(ctx, testDate, slot11)
	require.NoError(t, err)
	assert.False(t, state.Blocked)
	assert.True(t, availableFor(t, svc, "football", slot11))
}

func TestToggleBlockOnBookedSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)

	_, err = svc.ToggleBlock(ctx, testDate, slot9)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	_, err = svc.Block(ctx, testDate, slot9)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = svc.ToggleBlock(ctx, testDate, "nope")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAdminDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)
	_, err = svc.Book(ctx, aliceRequest("pickleball", slot9))
	require.NoError(t, err)
	_, err = svc.Block(ctx, testDate, slot11)
	require.NoError(t, err)

	view, err := svc.AdminDay(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalBookings)
	assert.Equal(t, 1, view.BlockedSlots)
	assert.Equal(t, 2, view.Slots[9].BookingCount)
	assert.ElementsMatch(t, []string{grounds.MainTurf, grounds.PickleballCourt}, view.Slots[9].OccupiedGrounds)
	assert.True(t, view.Slots[11].Blocked)
}

func TestDaySlotsRequiresSport(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DaySlots(context.Background(), testDate, " ")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.DaySlots(context.Background(), "june", "football")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestGetBatchNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetBatch(context.Background(), testDate, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestExportRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, aliceRequest("football", slot9))
	require.NoError(t, err)

	ledger, err := svc.ExportRange(ctx, "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, []string{testDate}, ledger.Dates())

	_, err = svc.ExportRange(ctx, "2024-06-30", "2024-06-01")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.ExportRange(ctx, "2024-01-01", "2025-06-01")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := OptionsFromConfig(configBooking("Mars/Olympus"))
	assert.Error(t, err)

	opts, err := OptionsFromConfig(configBooking("UTC"))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, opts.Location)
	assert.Equal(t, 10, opts.MinMobileDigits)
	assert.Equal(t, 30, opts.MaxAdvanceDays)

	noLimit := configBooking("UTC")
	zero := 0
	noLimit.MaxAdvanceDays = &zero
	opts, err = OptionsFromConfig(noLimit)
	require.NoError(t, err)
	assert.Zero(t, opts.MaxAdvanceDays)
}

func configBooking(tz string) config.BookingConfig {
	days := 30
	return config.BookingConfig{MinMobileDigits: 10, MaxAdvanceDays: &days, Timezone: tz}
}

func TestConcurrentBookingsOneWinner(t *testing.T) {
	opts := testOptions()
	opts.NewID = nil
	svc := NewBookingService(repository.NewMemoryLedgerStore(), grounds.Default(), nil, opts, nil)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		sport := "football"
		if i%2 == 1 {
			sport = "cricket"
		}
		wg.Add(1)
		go func(sport string) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), aliceRequest(sport, slot9))
			results <- err
		}(sport)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrConflict))
	}
	assert.Equal(t, 1, wins)
}
