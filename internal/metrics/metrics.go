package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventplanner"

// Registry is the Prometheus registry every metric in this package is
// registered with. The /metrics endpoint serves it.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels. The value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthCheckStatus tracks individual health check results
// Values: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// Registration metrics
var (
	// Registrations counts successful registrations by the status the
	// attendee landed in (registered or waitlisted).
	Registrations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of event registrations by resulting status",
		},
		[]string{"status"},
	)

	// RegistrationConflicts counts registration transitions refused because
	// of the event's current state.
	RegistrationConflicts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_conflicts_total",
			Help:      "Total number of refused registration transitions by reason",
		},
		[]string{"reason"},
	)

	WaitlistPromotions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_promotions_total",
			Help:      "Total number of waitlisted attendees promoted to registered",
		},
	)

	CheckIns = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Total number of attendee check-ins",
		},
	)
)

// Account metrics
var (
	// LoginAttempts counts logins by account kind (user|admin) and outcome
	// (success|unknown|bad_password|inactive|locked).
	LoginAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by account kind and outcome",
		},
		[]string{"account", "outcome"},
	)

	Signups = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Total number of user signups",
		},
	)
)

// Notification outbox metrics
var (
	OutboxDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatched_total",
			Help:      "Total number of outbox notifications processed by result",
		},
		[]string{"kind", "result"}, // result: sent, failed, skipped
	)

	OutboxPending = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Number of notifications waiting in the outbox at the last dispatch",
		},
	)

	// EventsCompleted counts events moved to completed by the sweeper job.
	EventsCompleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_completed_total",
			Help:      "Total number of events marked completed after their end time",
		},
	)
)

// Init registers the runtime collectors and sets version information.
func Init(version, commit, buildDate string) {
	// Go runtime metrics (memory, goroutines, GC)
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
