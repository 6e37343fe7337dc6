package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the flag ledger.
type Metrics struct {
	FlagsSubmitted       *prometheus.CounterVec
	FlagsApproved        prometheus.Counter
	SubmissionsRejected  *prometheus.CounterVec
	UsersRegistered      prometheus.Counter
	UsersVerified        prometheus.Counter
	MatchesCreated       prometheus.Counter
	RatingComputeSeconds prometheus.Histogram
	RequestDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		FlagsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flagledger_flags_submitted_total",
			Help: "Total flags submitted, by colour and variant",
		}, []string{"colour", "variant"}),
		FlagsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flagledger_flags_approved_total",
			Help: "Total flags approved by their recipients",
		}),
		SubmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flagledger_submissions_rejected_total",
			Help: "Total flag submissions rejected at validation, by error code",
		}, []string{"code"}),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flagledger_users_registered_total",
			Help: "Total users registered",
		}),
		UsersVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flagledger_users_verified_total",
			Help: "Total users verified by the owner",
		}),
		MatchesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flagledger_matches_created_total",
			Help: "Total matches recorded between users",
		}),
		RatingComputeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flagledger_rating_compute_seconds",
			Help:    "Time spent computing rating snapshots",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flagledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) ObserveFlagSubmitted(red bool, variant string) {
	m.FlagsSubmitted.WithLabelValues(colour(red), variant).Inc()
}

func (m *Metrics) ObserveSubmissionRejected(code string) {
	m.SubmissionsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveRatingCompute(d time.Duration) {
	m.RatingComputeSeconds.Observe(d.Seconds())
}

func colour(red bool) string {
	if red {
		return "red"
	}
	return "green"
}
