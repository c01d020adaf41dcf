package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of price observations ingested"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals computed"},
		[]string{"symbol", "label"},
	)
	TradesOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_opened_total", Help: "Simulated positions opened"},
		[]string{"symbol", "direction"},
	)
	TradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_closed_total", Help: "Simulated positions closed"},
		[]string{"symbol", "reason"},
	)
	FeedErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_errors_total", Help: "Upstream feed poll failures"},
		[]string{"provider"},
	)
	EquityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "equity_usd", Help: "Current simulated account equity"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, SignalsTotal, TradesOpenedTotal, TradesClosedTotal, FeedErrorsTotal, EquityUSD)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
