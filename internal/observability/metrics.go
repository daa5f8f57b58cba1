// Package observability expone métricas Prometheus del engine.
package observability

import (
	"net/http"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implementa ports.MetricsRecorder. Se actualiza una vez por commit.
type Metrics struct {
	EventsTotal *prometheus.CounterVec

	CurrentFee      prometheus.Gauge
	LastTick        prometheus.Gauge
	Volatility      prometheus.Gauge
	Volume          prometheus.Gauge
	Trades          prometheus.Gauge
	OpenPositions   prometheus.Gauge
	PendingOrders   prometheus.Gauge
	ScanListLength  prometheus.Gauge
	SignalsStored   prometheus.Gauge
	SurplusBalances prometheus.Gauge
	Paused          prometheus.Gauge
}

var _ ports.MetricsRecorder = (*Metrics)(nil)

// NewMetrics registra las métricas en reg. Con reg nil usa el registry por defecto.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "rangekeeper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Committed audit events by kind",
		}, []string{"kind"}),

		CurrentFee: gauge("pool", "current_fee", "Current LP fee in hundredths of a bip"),
		LastTick:   gauge("pool", "last_tick", "Pool tick after the last trade"),
		Volatility: gauge("pool", "volatility_ticks", "EWMA of absolute tick movement per trade"),
		Volume:     gauge("pool", "volume", "Cumulative traded volume in input units"),
		Trades:     gauge("pool", "trades", "Number of trades observed"),

		OpenPositions:   gauge("ledger", "open_positions", "Positions currently tracked"),
		PendingOrders:   gauge("ledger", "pending_orders", "Limit orders waiting for their trigger"),
		ScanListLength:  gauge("ledger", "scan_list_length", "Entries in the order scan list, including stale ones"),
		SignalsStored:   gauge("signals", "stored", "Rebalance signals held in the ring buffer"),
		SurplusBalances: gauge("ledger", "surplus_balances", "Non-zero surplus entries"),
		Paused:          gauge("engine", "paused", "1 when the engine is paused"),
	}
}

// ObserveCommit cuenta los eventos confirmados y refresca los gauges con el estado resultante.
func (m *Metrics) ObserveCommit(events []domain.Event, st domain.EngineState) {
	for _, ev := range events {
		m.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	m.CurrentFee.Set(float64(st.Stats.CurrentFee))
	m.LastTick.Set(float64(st.Stats.LastTick))
	m.Volatility.Set(st.Stats.Volatility)
	m.Volume.Set(float64(st.Stats.Volume))
	m.Trades.Set(float64(st.Stats.Trades))

	pending := 0
	for _, o := range st.Orders {
		if o.Pending() {
			pending++
		}
	}
	m.OpenPositions.Set(float64(len(st.Positions)))
	m.PendingOrders.Set(float64(pending))
	m.ScanListLength.Set(float64(len(st.PoolOrderIDs)))
	m.SignalsStored.Set(float64(len(st.Signals)))
	m.SurplusBalances.Set(float64(len(st.Surplus)))

	paused := 0.0
	if st.Paused {
		paused = 1
	}
	m.Paused.Set(paused)
}

// Handler devuelve el handler HTTP de /metrics para el gatherer dado.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
