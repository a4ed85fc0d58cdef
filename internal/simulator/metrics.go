package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the simulator.
//
// Metrics:
//   - gridwalker_commands_total{kind} - instructions handled per command kind
//   - gridwalker_command_duration_seconds{kind} - handling latency
//   - gridwalker_robot_lost_total - instructions that ended with the robot LOST
//   - gridwalker_audit_dropped_total - audit events dropped by a full queue
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	RobotLostTotal  prometheus.Counter
	AuditDropped    prometheus.Counter
}

// NewMetrics creates the simulator metrics and registers them with reg.
// Passing a fresh registry per service keeps tests free of duplicate
// registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridwalker",
				Name:      "commands_total",
				Help:      "Total number of instructions handled by command kind",
			},
			[]string{"kind"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gridwalker",
				Name:      "command_duration_seconds",
				Help:      "Duration of instruction handling in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
		RobotLostTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gridwalker",
				Name:      "robot_lost_total",
				Help:      "Total number of instructions that left the robot LOST",
			},
		),
		AuditDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gridwalker",
				Name:      "audit_dropped_total",
				Help:      "Total number of audit events dropped because the queue was full",
			},
		),
	}
}
