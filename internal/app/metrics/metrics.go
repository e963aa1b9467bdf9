package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "engage_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "engage_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	actionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "actions",
			Name:      "processed_total",
			Help:      "Total number of facade actions processed.",
		},
		[]string{"action"},
	)

	rewardsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "awarded_total",
			Help:      "Total number of reward ledger entries appended.",
		},
		[]string{"type"},
	)

	rewardsAwardedAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "awarded_opin_total",
			Help:      "Total OPIN appended to the reward ledger.",
		},
		[]string{"type"},
	)

	claimsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Total number of reward claims processed.",
		},
	)

	claimedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "claimed_opin_total",
			Help:      "Total OPIN released by claims.",
		},
	)

	withdrawalsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "withdrawals_total",
			Help:      "Total number of withdrawals processed.",
		},
	)

	withdrawnAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "withdrawn_opin_total",
			Help:      "Total OPIN withdrawn off-platform.",
		},
	)

	poolDistributions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engage_layer",
			Subsystem: "rewards",
			Name:      "pool_distributions_total",
			Help:      "Total number of daily pool distribution runs.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		actionsProcessed,
		rewardsAwarded,
		rewardsAwardedAmount,
		claimsProcessed,
		claimedAmount,
		withdrawalsProcessed,
		withdrawnAmount,
		poolDistributions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// ActionProcessed counts one facade action.
func ActionProcessed(action string) {
	if action == "" {
		action = "unknown"
	}
	actionsProcessed.WithLabelValues(action).Inc()
}

// RewardAwarded counts a ledger append and its amount.
func RewardAwarded(rewardType string, amount float64) {
	if rewardType == "" {
		rewardType = "unknown"
	}
	rewardsAwarded.WithLabelValues(rewardType).Inc()
	if amount > 0 {
		rewardsAwardedAmount.WithLabelValues(rewardType).Add(amount)
	}
}

// ClaimProcessed counts a claim and the amount it released.
func ClaimProcessed(amount float64) {
	claimsProcessed.Inc()
	if amount > 0 {
		claimedAmount.Add(amount)
	}
}

// WithdrawalProcessed counts a withdrawal and the amount moved off-platform.
func WithdrawalProcessed(amount float64) {
	withdrawalsProcessed.Inc()
	if amount > 0 {
		withdrawnAmount.Add(amount)
	}
}

// PoolDistributed counts one daily pool distribution run.
func PoolDistributed() {
	poolDistributions.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	collapsible := map[string]bool{
		"users": true, "posts": true, "rewards": true,
		"notifications": true, "conversations": true, "hashtags": true,
	}
	if !collapsible[parts[0]] {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	if len(parts) == 2 {
		return "/" + parts[0] + "/:id"
	}
	return "/" + parts[0] + "/:id/" + parts[2]
}
