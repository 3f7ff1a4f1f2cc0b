// Package metrics collects authentication counters and exposes them for Prometheus
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	LoginSuccess  = "success"
	LoginRejected = "rejected"
	LoginError    = "error"
)

// Gate rejection reasons. Never sent to clients
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonForged    = "forged"
	ReasonExpired   = "expired"
	ReasonInternal  = "internal"
)

// Recorder is what handlers and middlewares use to count events
type Recorder interface {
	RecordLogin(outcome string)
	RecordGateRejected(reason string)
	RecordGatePassed()
	RecordHTTPStatus(statusCode int)
}

type Collector struct {
	logins       *prometheus.CounterVec
	gateRejected *prometheus.CounterVec
	gatePassed   prometheus.Counter
	httpStatus   *prometheus.CounterVec
}

// NewCollector creates collector and registers its metrics in reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshop_auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		gateRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshop_auth_gate_rejected_total",
			Help: "Privileged requests rejected by reason",
		}, []string{"reason"}),
		gatePassed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshop_auth_gate_passed_total",
			Help: "Privileged requests let through",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookshop_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.gateRejected,
		c.gatePassed,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordGateRejected(reason string) {
	c.gateRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordGatePassed() {
	c.gatePassed.Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler serves metrics gathered by gatherer in Prometheus format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NoOp discards everything. Used when metrics are disabled
type NoOp struct{}

func (NoOp) RecordLogin(string)        {}
func (NoOp) RecordGateRejected(string) {}
func (NoOp) RecordGatePassed()         {}
func (NoOp) RecordHTTPStatus(int)      {}
