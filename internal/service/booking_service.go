package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxExportDays bounds ExportRange.
const MaxExportDays = 366

var _ domain.BookingService = (*BookingService)(nil)

type Options struct {
	MinMobileDigits int
	MaxAdvanceDays  int
	RejectPastDates bool
	Location        *time.Location
	Now             func() time.Time
	NewID           func() string
}

// OptionsFromConfig resolves the booking section, including the timezone
// used to decide what "today" is.
func OptionsFromConfig(cfg config.BookingConfig) (Options, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	opts := Options{
		MinMobileDigits: cfg.MinMobileDigits,
		RejectPastDates: cfg.RejectPastDates,
		Location:        loc,
	}
	if cfg.MaxAdvanceDays != nil {
		opts.MaxAdvanceDays = *cfg.MaxAdvanceDays
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.MinMobileDigits <= 0 {
		o.MinMobileDigits = models.DefaultMinMobileDigits
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

type BookingService struct {
	store    domain.LedgerStore
	grounds  domain.GroundRegistry
	eventBus domain.EventPublisher
	opts     Options
	logger   *zerolog.Logger
}

func NewBookingService(store domain.LedgerStore, grounds domain.GroundRegistry, eventBus domain.EventPublisher, opts Options, logger *zerolog.Logger) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:    store,
		grounds:  grounds,
		eventBus: eventBus,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Book reserves every requested slot or none of them.
func (s *BookingService) Book(ctx context.Context, req models.BookingRequest) (*models.BookingBatch, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, s.reject(err, req.Date)
	}
	if err := s.checkBookable(date); err != nil {
		return nil, s.reject(err, req.Date)
	}
	if err := validateSlots(req.Slots); err != nil {
		return nil, s.reject(err, req.Date)
	}
	sport := models.NormalizeSport(req.Sport)
	if sport == "" {
		return nil, s.reject(domain.NewValidationError("sport", "is required"), req.Date)
	}
	if !s.grounds.Known(sport) {
		return nil, s.reject(domain.NewValidationError("sport", fmt.Sprintf("unknown sport %q", sport)), req.Date)
	}
	customer, err := validateCustomer(req.Customer, s.opts.MinMobileDigits)
	if err != nil {
		return nil, s.reject(err, req.Date)
	}

	dateKey := date.Format(models.DateLayout)
	ground := s.grounds.GroundOf(sport)
	batchID := s.opts.NewID()
	createdAt := s.opts.Now().UTC()

	var batch *models.BookingBatch
	day, err := s.store.UpdateDay(ctx, dateKey, func(day *models.DayLedger) error {
		var taken []string
		for _, slot := range req.Slots {
			if !availability.IsAvailable(s.grounds, day, slot, sport) {
				taken = append(taken, slot)
			}
		}
		if len(taken) > 0 {
			return &domain.ConflictError{Date: dateKey, Slots: taken, Reason: "slots unavailable"}
		}

		bookings := make([]models.Booking, 0, len(req.Slots))
		for _, slot := range req.Slots {
			bookings = append(bookings, models.Booking{
				ID:              s.opts.NewID(),
				BatchID:         batchID,
				Date:            dateKey,
				Slot:            slot,
				Sport:           sport,
				Ground:          ground,
				CustomerName:    customer.Name,
				CustomerMobile:  customer.Mobile,
				CustomerAddress: customer.Address,
				CreatedAt:       createdAt,
			})
		}
		day.Bookings = append(day.Bookings, bookings...)
		batch = models.BatchFromBookings(bookings)
		return nil
	})
	if err != nil {
		return nil, s.reject(err, dateKey)
	}

	metrics.AddSlotsBooked(sport, len(batch.Bookings))
	s.logger.Info().
		Str("date", dateKey).
		Str("sport", sport).
		Str("batch_id", batch.ID).
		Strs("slots", batch.Slots()).
		Msg("booking created")

	s.publishBookingEvent(events.EventBookingCreated, dateKey, batch.ID, batch.Bookings, day.Version)
	return batch, nil
}

// Cancel removes every booking at slot matching sport and customer name.
func (s *BookingService) Cancel(ctx context.Context, req models.CancelRequest) (*models.CancelResult, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, s.fail(err, req.Date)
	}
	if err := validateSlot("slot", req.Slot); err != nil {
		return nil, s.fail(err, req.Date)
	}
	sport := models.NormalizeSport(req.Sport)
	if sport == "" {
		return nil, s.fail(domain.NewValidationError("sport", "is required"), req.Date)
	}
	name := models.NormalizeName(req.CustomerName)
	if name == "" {
		return nil, s.fail(domain.NewValidationError("customer_name", "is required"), req.Date)
	}

	dateKey := date.Format(models.DateLayout)
	return s.removeBookings(ctx, dateKey, func(b models.Booking) bool {
		return b.Slot == req.Slot && b.Sport == sport && models.NormalizeName(b.CustomerName) == name
	}, fmt.Sprintf("%s %s %s %s", dateKey, req.Slot, sport, req.CustomerName))
}

// CancelByID removes the single booking with bookingID.
func (s *BookingService) CancelByID(ctx context.Context, date, bookingID string) (*models.CancelResult, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, s.fail(err, date)
	}
	if bookingID == "" {
		return nil, s.fail(domain.NewValidationError("id", "is required"), date)
	}
	dateKey := d.Format(models.DateLayout)
	return s.removeBookings(ctx, dateKey, func(b models.Booking) bool {
		return b.ID == bookingID
	}, bookingID)
}

func (s *BookingService) removeBookings(ctx context.Context, dateKey string, match func(models.Booking) bool, key string) (*models.CancelResult, error) {
	var removed []models.Booking
	day, err := s.store.UpdateDay(ctx, dateKey, func(day *models.DayLedger) error {
		removed = day.RemoveBookings(match)
		if len(removed) == 0 {
			return &domain.NotFoundError{Resource: "booking", Key: key}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, dateKey)
	}

	metrics.AddCancellations(len(removed))
	s.logger.Info().Str("date", dateKey).Int("count", len(removed)).Msg("bookings cancelled")

	s.publishBookingEvent(events.EventBookingCancelled, dateKey, "", removed, day.Version)
	return &models.CancelResult{Date: dateKey, Cancelled: removed}, nil
}

// ToggleBlock flips the block on an empty slot. Occupied slots are refused.
func (s *BookingService) ToggleBlock(ctx context.Context, date, slot string) (*models.BlockState, error) {
	return s.changeBlock(ctx, date, slot, func(day *models.DayLedger, block models.Block) (bool, error) {
		if day.RemoveBlock(slot) {
			return false, nil
		}
		if err := ensureFree(day, slot); err != nil {
			return false, err
		}
		day.AddBlock(block)
		return true, nil
	})
}

// Block is idempotent on an already blocked slot.
func (s *BookingService) Block(ctx context.Context, date, slot string) (*models.BlockState, error) {
	return s.changeBlock(ctx, date, slot, func(day *models.DayLedger, block models.Block) (bool, error) {
		if day.IsBlocked(slot) {
			return true, nil
		}
		if err := ensureFree(day, slot); err != nil {
			return false, err
		}
		day.AddBlock(block)
		return true, nil
	})
}

func (s *BookingService) Unblock(ctx context.Context, date, slot string) (*models.BlockState, error) {
	return s.changeBlock(ctx, date, slot, func(day *models.DayLedger, _ models.Block) (bool, error) {
		if !day.RemoveBlock(slot) {
			return false, &domain.NotFoundError{Resource: "block", Key: fmt.Sprintf("%s %s", day.Date, slot)}
		}
		return false, nil
	})
}

type blockChange func(day *models.DayLedger, block models.Block) (blocked bool, err error)

// ensureFree refuses to block a slot that still holds bookings.
func ensureFree(day *models.DayLedger, slot string) error {
	if len(day.BookingsAt(slot)) > 0 {
		return &domain.ConflictError{Date: day.Date, Slots: []string{slot}, Reason: "slot has bookings, cancel them first"}
	}
	return nil
}

func (s *BookingService) changeBlock(ctx context.Context, date, slot string, change blockChange) (*models.BlockState, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, s.fail(err, date)
	}
	if err := validateSlot("slot", slot); err != nil {
		return nil, s.fail(err, date)
	}
	dateKey := d.Format(models.DateLayout)
	block := models.Block{Date: dateKey, Slot: slot, CreatedAt: s.opts.Now().UTC()}

	var wasBlocked, blocked bool
	day, err := s.store.UpdateDay(ctx, dateKey, func(day *models.DayLedger) error {
		wasBlocked = day.IsBlocked(slot)
		var err error
		blocked, err = change(day, block)
		return err
	})
	if err != nil {
		return nil, s.fail(err, dateKey)
	}

	state := &models.BlockState{Date: dateKey, Slot: slot, Blocked: blocked}
	if wasBlocked == blocked {
		return state, nil
	}

	eventType, action := events.EventSlotUnblocked, "unblock"
	if blocked {
		eventType, action = events.EventSlotBlocked, "block"
	}
	metrics.IncBlockChange(action)
	s.logger.Info().Str("date", dateKey).Str("slot", slot).Bool("blocked", blocked).Msg("block changed")

	s.publish(eventType, events.BlockEventPayload{
		Date:    dateKey,
		Slot:    slot,
		Blocked: blocked,
		Version: day.Version,
		At:      s.opts.Now().UTC(),
	})
	return state, nil
}

func (s *BookingService) GetBatch(ctx context.Context, date, batchID string) (*models.BookingBatch, error) {
	day, err := s.LoadDay(ctx, date)
	if err != nil {
		return nil, err
	}
	batch := models.BatchFromBookings(day.FindBatch(batchID))
	if batch == nil {
		return nil, &domain.NotFoundError{Resource: "booking batch", Key: batchID}
	}
	return batch, nil
}

// LoadDay returns the latest stored snapshot of date.
func (s *BookingService) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	day, err := s.store.LoadDay(ctx, d.Format(models.DateLayout))
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("failed to load day")
		return nil, err
	}
	return day, nil
}

// DaySlots is the user view of date for sport.
func (s *BookingService) DaySlots(ctx context.Context, date, sport string) ([]availability.SlotView, error) {
	sport = models.NormalizeSport(sport)
	if sport == "" {
		return nil, domain.NewValidationError("sport", "is required")
	}
	day, err := s.LoadDay(ctx, date)
	if err != nil {
		return nil, err
	}
	return availability.ComputeDaySlots(s.grounds, day, sport), nil
}

// AdminDay is the operator view of date.
func (s *BookingService) AdminDay(ctx context.Context, date string) (*availability.AdminDay, error) {
	day, err := s.LoadDay(ctx, date)
	if err != nil {
		return nil, err
	}
	view := availability.ComputeAdminDay(s.grounds, day)
	return &view, nil
}

func (s *BookingService) ExportRange(ctx context.Context, from, to string) (models.Ledger, error) {
	start, end, err := ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.LoadRange(ctx, start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		s.logger.Error().Err(err).Str("from", from).Str("to", to).Msg("failed to load range")
		return nil, err
	}
	return ledger, nil
}

// ParseRange validates an inclusive export range.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	start, err := parseDate("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("to", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", "is before from")
	}
	if end.Sub(start) >= MaxExportDays*24*time.Hour {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", fmt.Sprintf("range exceeds %d days", MaxExportDays))
	}
	return start, end, nil
}

// reject logs and counts a failed booking attempt.
func (s *BookingService) reject(err error, date string) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		metrics.IncRejection("validation")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrConcurrentModification):
		metrics.IncRejection("conflict")
	default:
		metrics.IncRejection("internal")
	}
	return s.fail(err, date)
}

func (s *BookingService) fail(err error, date string) error {
	switch domain.Kind(err) {
	case "validation":
		s.logger.Debug().Err(err).Str("date", date).Msg("request rejected")
	case "conflict", "not_found":
		s.logger.Info().Err(err).Str("date", date).Msg("request refused")
	default:
		s.logger.Error().Err(err).Str("date", date).Msg("ledger operation failed")
	}
	return err
}

func (s *BookingService) publishBookingEvent(eventType, date, batchID string, bookings []models.Booking, version int64) {
	if len(bookings) == 0 {
		return
	}
	first := bookings[0]
	payload := events.BookingEventPayload{
		Date:         date,
		BatchID:      batchID,
		Sport:        first.Sport,
		Ground:       first.Ground,
		CustomerName: first.CustomerName,
		Version:      version,
		At:           s.opts.Now().UTC(),
	}
	for _, b := range bookings {
		payload.BookingIDs = append(payload.BookingIDs, b.ID)
		payload.Slots = append(payload.Slots, b.Slot)
	}
	s.publish(eventType, payload)
}

func (s *BookingService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
