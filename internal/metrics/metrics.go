package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablequeue"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_admissions_total",
			Help:      "Queue admissions by resulting status.",
		},
		[]string{"status"},
	)

	tablesFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_freed_total",
			Help:      "Tables released by free-table operations.",
		},
	)

	promotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_promotions_total",
			Help:      "Waiting entries promoted to ready_to_seat.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Published notifications by transport and result.",
		},
		[]string{"transport", "result"},
	)

	sseSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_subscribers",
			Help:      "Open server-sent event streams.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissions, tablesFreed, promotions, notifications, sseSubscribers)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAdmission(status string) {
	admissions.WithLabelValues(status).Inc()
}

func IncTableFreed() {
	tablesFreed.Inc()
}

func IncPromotion() {
	promotions.Inc()
}

// ObserveNotification counts one publish attempt on a transport.
func ObserveNotification(transport string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(transport, result).Inc()
}

func AddSSESubscribers(delta float64) {
	sseSubscribers.Add(delta)
}
