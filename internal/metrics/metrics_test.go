package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(slotsBooked.WithLabelValues("football"))
	AddSlotsBooked("football", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(slotsBooked.WithLabelValues("football")))

	before = testutil.ToFloat64(bookingRejections.WithLabelValues("conflict"))
	IncRejection("conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingRejections.WithLabelValues("conflict")))

	before = testutil.ToFloat64(cancellations)
	AddCancellations(2)
	assert.Equal(t, before+2, testutil.ToFloat64(cancellations))

	before = testutil.ToFloat64(blockChanges.WithLabelValues("block"))
	IncBlockChange("block")
	assert.Equal(t, before+1, testutil.ToFloat64(blockChanges.WithLabelValues("block")))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("slots", "2xx"))
	IncHTTP("slots", "2xx")
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("slots", "2xx")))

	before = testutil.ToFloat64(forwardFailures)
	IncForwardFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(forwardFailures))
}
