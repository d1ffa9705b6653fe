// Package metrics exposes dashboard activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives events from the poller and the command path.
// Calls happen inline with polling and must be cheap.
type Collector interface {
	ObservePoll(err error, duration time.Duration)
	IncCommand(command string, err error)
	SetNodePower(node string, watts float64, present bool)
	SetSOC(percent float64, present bool)
	IncReload()
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObservePoll(error, time.Duration)   {}
func (noopCollector) IncCommand(string, error)           {}
func (noopCollector) SetNodePower(string, float64, bool) {}
func (noopCollector) SetSOC(float64, bool)               {}
func (noopCollector) IncReload()                         {}

// PrometheusCollector implements Collector with Prometheus vectors
type PrometheusCollector struct {
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	commands     *prometheus.CounterVec
	nodePower    *prometheus.GaugeVec
	soc          prometheus.Gauge
	reloads      prometheus.Counter
}

// NewPrometheusCollector registers the dashboard metrics with reg. Metrics
// already registered by an earlier collector are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	polls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energydash_polls_total",
		Help: "Number of state polls by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	pollDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "energydash_poll_duration_seconds",
		Help:    "Duration of state polls against the backend.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}))
	if err != nil {
		return nil, err
	}
	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energydash_commands_total",
		Help: "Number of commands forwarded to the backend by command and result.",
	}, []string{"command", "result"}))
	if err != nil {
		return nil, err
	}
	nodePower, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "energydash_node_power_watts",
		Help: "Last reported power per flow node.",
	}, []string{"node"}))
	if err != nil {
		return nil, err
	}
	soc, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "energydash_battery_soc_percent",
		Help: "Last reported battery state of charge.",
	}))
	if err != nil {
		return nil, err
	}
	reloads, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "energydash_session_reloads_total",
		Help: "Number of reloads triggered by an invalid session.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		polls:        polls,
		pollDuration: pollDuration,
		commands:     commands,
		nodePower:    nodePower,
		soc:          soc,
		reloads:      reloads,
	}, nil
}

// register adds c to reg, returning the existing collector of the same
// type if one is already registered
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePoll counts a poll and records its duration
func (p *PrometheusCollector) ObservePoll(err error, duration time.Duration) {
	if p == nil {
		return
	}
	p.polls.WithLabelValues(result(err)).Inc()
	p.pollDuration.Observe(duration.Seconds())
}

// IncCommand counts a forwarded command
func (p *PrometheusCollector) IncCommand(command string, err error) {
	if p == nil {
		return
	}
	p.commands.WithLabelValues(command, result(err)).Inc()
}

// SetNodePower updates a node gauge. Absent values remove the series so a
// stale reading is not exported.
func (p *PrometheusCollector) SetNodePower(node string, watts float64, present bool) {
	if p == nil {
		return
	}
	if !present {
		p.nodePower.DeleteLabelValues(node)
		return
	}
	p.nodePower.WithLabelValues(node).Set(watts)
}

// SetSOC updates the state of charge gauge
func (p *PrometheusCollector) SetSOC(percent float64, present bool) {
	if p == nil || !present {
		return
	}
	p.soc.Set(percent)
}

// IncReload counts a session reload
func (p *PrometheusCollector) IncReload() {
	if p == nil {
		return
	}
	p.reloads.Inc()
}
