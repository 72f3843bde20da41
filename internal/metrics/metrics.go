// Package metrics exposes the monitor's operational counters to
// Prometheus. Registration happens at init via promauto; Serve is optional.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Polls counts completed poll cycles.
	Polls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "polls_total",
		Help:      "Total number of position poll cycles",
	})

	// AggregatePnL is the last observed aggregate unrealized P&L.
	AggregatePnL = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "aggregate_pnl",
		Help:      "Last observed aggregate unrealized P&L across monitored venues",
	})

	// LossRatio is |pnl|/threshold for losses, 0 otherwise.
	LossRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "loss_ratio",
		Help:      "Aggregate loss as a fraction of the configured max loss",
	})

	// OpenPositions is the number of open positions in the last snapshot.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "open_positions",
		Help:      "Open F&O positions in the last snapshot",
	})

	// ExitEvents counts triggered liquidations.
	ExitEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "exit_events_total",
		Help:      "Total number of triggered exit events",
	})

	// ExitOrders counts exit order results by outcome.
	ExitOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "exit_orders_total",
		Help:      "Exit order results by outcome",
	}, []string{"outcome"})

	// PollErrors counts transient fetch failures.
	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "poll_errors_total",
		Help:      "Transient position fetch failures",
	})

	// State is the monitor state as a small integer
	// (0=idle 1=polling 2=cooldown 3=stopped).
	State = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exitwave",
		Subsystem: "monitor",
		Name:      "state",
		Help:      "Monitor state (0=idle 1=polling 2=cooldown 3=stopped)",
	})
)

// Serve starts the /metrics listener in a background goroutine.
func Serve(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("📊 Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics listener failed")
		}
	}()
}
