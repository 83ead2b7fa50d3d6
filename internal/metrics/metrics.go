package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	slotsBooked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_booked_total",
			Help:      "Booked slots by sport.",
		},
		[]string{"sport"},
	)

	bookingRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejections_total",
			Help:      "Rejected booking requests by reason.",
		},
		[]string{"reason"},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Cancelled bookings.",
		},
	)

	blockChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_changes_total",
			Help:      "Slot block and unblock operations.",
		},
		[]string{"action"},
	)

	forwardFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_forward_failures_total",
			Help:      "Events dropped after exhausting forward retries.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, slotsBooked, bookingRejections, cancellations, blockChanges, forwardFailures)
	})
}

// IncHTTP increments the counter for an endpoint and status class ("2xx", "4xx").
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func AddSlotsBooked(sport string, n int) {
	slotsBooked.WithLabelValues(sport).Add(float64(n))
}

func IncRejection(reason string) {
	bookingRejections.WithLabelValues(reason).Inc()
}

func AddCancellations(n int) {
	cancellations.Add(float64(n))
}

// IncBlockChange counts "block" and "unblock" actions.
func IncBlockChange(action string) {
	blockChanges.WithLabelValues(action).Inc()
}

func IncForwardFailure() {
	forwardFailures.Inc()
}
