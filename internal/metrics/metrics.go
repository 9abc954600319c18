package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	partyTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesaya",
			Name:      "party_transitions_total",
			Help:      "Count of party state transitions by action.",
		},
		[]string{"action"},
	)

	partiesJoined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mesaya",
			Name:      "parties_joined_total",
			Help:      "Count of parties added to a waitlist.",
		},
	)

	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesaya",
			Name:      "notifications_dispatched_total",
			Help:      "Count of notification dispatch outcomes by channel and status.",
		},
		[]string{"channel", "status"},
	)

	dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mesaya",
			Name:      "notification_dispatch_duration_seconds",
			Help:      "Time to complete a dispatch including fallback attempts.",
			Buckets:   []float64{.05, .1, .5, 1, 2, 5, 10, 20},
		},
	)

	verificationCodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesaya",
			Name:      "verification_codes_total",
			Help:      "Count of verification code operations by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(partyTransitions, partiesJoined, notificationsDispatched,
			dispatchDuration, verificationCodes)
	})
}

func IncPartyJoined() {
	partiesJoined.Inc()
}

func IncTransition(action string) {
	partyTransitions.WithLabelValues(action).Inc()
}

func IncDispatch(channel, status string) {
	notificationsDispatched.WithLabelValues(channel, status).Inc()
}

func ObserveDispatchDuration(seconds float64) {
	dispatchDuration.Observe(seconds)
}

func IncVerification(result string) {
	verificationCodes.WithLabelValues(result).Inc()
}
