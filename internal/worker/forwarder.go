package worker

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/metrics"

	"github.com/rs/zerolog"
)

// Sink delivers an event to an external system.
type Sink interface {
	Publish(ctx context.Context, event *events.Event) error
}

// EventForwarder drains a bounded queue of bus events into a Sink. Enqueue
// never blocks: a full queue drops the event with a warning.
type EventForwarder struct {
	sink        Sink
	retryPolicy RetryPolicy
	queue       chan *events.Event
	logger      *zerolog.Logger
	wg          sync.WaitGroup
}

// NewEventForwarder builds a forwarder with sane defaults.
func NewEventForwarder(sink Sink, queueSize int, retry RetryPolicy, logger *zerolog.Logger) *EventForwarder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &EventForwarder{
		sink:        sink,
		retryPolicy: retry.WithDefaults(),
		queue:       make(chan *events.Event, queueSize),
		logger:      logger,
	}
}

// Handle is an events.EventHandler suitable for EventBus.Subscribe.
func (f *EventForwarder) Handle(event *events.Event) error {
	f.Enqueue(event)
	return nil
}

// Enqueue reports whether the event was accepted.
func (f *EventForwarder) Enqueue(event *events.Event) bool {
	select {
	case f.queue <- event:
		return true
	default:
		f.logger.Warn().Str("event_id", event.ID).Str("type", event.Type).Msg("forward queue full, event dropped")
		return false
	}
}

// Start launches the loop in its own goroutine. It stops once ctx is done
// and the in-flight event is finished.
func (f *EventForwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.run(ctx)
}

func (f *EventForwarder) run(ctx context.Context) {
	defer f.wg.Done()

	f.logger.Info().Int("queue_size", cap(f.queue)).Msg("event forwarder started")
	defer f.logger.Info().Msg("event forwarder stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.queue:
			f.process(ctx, event)
		}
	}
}

// Wait blocks until the loop started by Start has returned.
func (f *EventForwarder) Wait() {
	f.wg.Wait()
}

func (f *EventForwarder) process(ctx context.Context, event *events.Event) {
	var err error
	for attempt := 1; attempt <= f.retryPolicy.MaxRetries; attempt++ {
		if err = f.sink.Publish(ctx, event); err == nil {
			return
		}
		if f.retryPolicy.Exhausted(attempt) {
			break
		}

		delay := f.retryPolicy.NextDelay(attempt)
		f.logger.Warn().Err(err).Str("event_id", event.ID).Int("attempt", attempt).Dur("retry_in", delay).Msg("forward failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.logger.Warn().Str("event_id", event.ID).Msg("forward abandoned on shutdown")
			metrics.IncForwardFailure()
			return
		case <-timer.C:
		}
	}

	metrics.IncForwardFailure()
	f.logger.Error().Err(err).Str("event_id", event.ID).Str("type", event.Type).Msg("forward retries exhausted, event dropped")
}
