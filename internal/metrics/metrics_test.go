package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
	})
}

func TestQueueCounters(t *testing.T) {
	before := testutil.ToFloat64(admissions.WithLabelValues("waiting"))
	IncAdmission("waiting")
	assert.Equal(t, before+1, testutil.ToFloat64(admissions.WithLabelValues("waiting")))

	freed := testutil.ToFloat64(tablesFreed)
	IncTableFreed()
	assert.Equal(t, freed+1, testutil.ToFloat64(tablesFreed))

	promoted := testutil.ToFloat64(promotions)
	IncPromotion()
	assert.Equal(t, promoted+1, testutil.ToFloat64(promotions))
}

func TestObserveNotification(t *testing.T) {
	ok := testutil.ToFloat64(notifications.WithLabelValues("nats", "ok"))
	failed := testutil.ToFloat64(notifications.WithLabelValues("nats", "error"))

	ObserveNotification("nats", nil)
	ObserveNotification("nats", errors.New("down"))

	assert.Equal(t, ok+1, testutil.ToFloat64(notifications.WithLabelValues("nats", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(notifications.WithLabelValues("nats", "error")))
}

func TestSSESubscribers(t *testing.T) {
	before := testutil.ToFloat64(sseSubscribers)
	AddSSESubscribers(1)
	AddSSESubscribers(-1)
	assert.Equal(t, before, testutil.ToFloat64(sseSubscribers))
}
