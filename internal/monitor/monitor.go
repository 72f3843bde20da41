// Package monitor drives the poll/evaluate/exit loop. A single goroutine
// owns the cycle; the caller controls it through Start, Stop and Wait.
//
// After an exit the loop sits in cooldown without re-aggregating P&L. Once
// the cooldown elapses it resumes polling, and if the remaining positions
// still breach the threshold it exits again. That retry-until-flat behavior
// is deliberate: a partially failed liquidation must not leave the book
// unwatched.
package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/exitwave/internal/config"
	"github.com/web3guy0/exitwave/internal/executor"
	"github.com/web3guy0/exitwave/internal/kite"
	"github.com/web3guy0/exitwave/internal/metrics"
	"github.com/web3guy0/exitwave/internal/notify"
	"github.com/web3guy0/exitwave/internal/positions"
	"github.com/web3guy0/exitwave/internal/risk"
	"github.com/web3guy0/exitwave/internal/storage"
)

// Stop reasons reported in the session summary.
const (
	ReasonStopRequested = "stop requested"
	ReasonMarketClose   = "market close"
	ReasonAuthError     = "auth error"
)

// State is the monitor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateCooldown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePolling:
		return "POLLING"
	case StateCooldown:
		return "COOLDOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// PositionSource supplies position snapshots. Implemented by kite.Client.
type PositionSource interface {
	Positions() (*positions.Book, error)
}

// ExitEngine liquidates positions. Implemented by executor.Engine.
type ExitEngine interface {
	ExitAllPositions(list []positions.Position, dryRun bool) []executor.ExitOrderResult
	VerifyExitOrders(results []executor.ExitOrderResult, dryRun bool) bool
}

// Recorder persists exit results and session summaries. Implemented by
// storage.Database.
type Recorder interface {
	SaveExitResults(sessionID string, results []executor.ExitOrderResult) error
	SaveSummary(s *storage.SessionSummary) error
}

// Notifier pushes alerts to the operator. Implemented by notify.Telegram.
type Notifier interface {
	NotifyBreach(pnl, threshold decimal.Decimal, positionCount int, dryRun bool)
	NotifyExitResults(results []executor.ExitOrderResult, dryRun bool)
	NotifySummary(s notify.SummaryData)
}

// Monitor is the loop controller. Construct with New, then Start.
type Monitor struct {
	source PositionSource
	engine ExitEngine
	eval   *risk.Evaluator
	log    zerolog.Logger

	recorder Recorder
	notifier Notifier

	pollInterval time.Duration
	cooldown     time.Duration
	cooldownTick time.Duration
	stopTimeout  time.Duration
	venues       []string
	dryRun       bool

	closeHour   int
	closeMinute int
	loc         *time.Location

	// overridable in tests
	now func() time.Time

	mu      sync.Mutex
	session *Session
	stopCh  chan struct{}
	doneCh  chan struct{}

	state  atomic.Int32
	exited atomic.Bool
}

// New builds a Monitor from the config and its collaborators. Recorder and
// Notifier are optional; attach them with SetRecorder / SetNotifier.
func New(cfg *config.Config, source PositionSource, engine ExitEngine, eval *risk.Evaluator, log zerolog.Logger) (*Monitor, error) {
	hour, minute, err := config.ParseMarketClose(cfg.MarketClose)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("monitor: load timezone %q: %w", cfg.Timezone, err)
	}

	m := &Monitor{
		source:       source,
		engine:       engine,
		eval:         eval,
		log:          log.With().Str("component", "monitor").Logger(),
		pollInterval: cfg.PollInterval,
		cooldown:     cfg.Cooldown,
		cooldownTick: time.Second,
		stopTimeout:  cfg.StopTimeout,
		venues:       cfg.Exchanges,
		dryRun:       cfg.DryRun,
		closeHour:    hour,
		closeMinute:  minute,
		loc:          loc,
		now:          time.Now,
	}
	m.state.Store(int32(StateIdle))
	return m, nil
}

// SetRecorder attaches the persistence layer.
func (m *Monitor) SetRecorder(r Recorder) { m.recorder = r }

// SetNotifier attaches the alert channel.
func (m *Monitor) SetNotifier(n Notifier) { m.notifier = n }

// State returns the current lifecycle state. Safe to call concurrently.
func (m *Monitor) State() State { return State(m.state.Load()) }

// IsRunning reports whether the loop goroutine is active.
func (m *Monitor) IsRunning() bool {
	s := m.State()
	return s == StatePolling || s == StateCooldown
}

// HasExited reports whether any exit event fired during the current or most
// recent run. Safe to call concurrently.
func (m *Monitor) HasExited() bool { return m.exited.Load() }

// Session returns the session of the most recent run. Call only after the
// monitor has stopped; the loop goroutine owns the session while running.
func (m *Monitor) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Start resets session state and launches the loop goroutine. It fails if
// the monitor is already running.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsRunning() {
		return fmt.Errorf("monitor: already running")
	}

	m.session = newSession(m.now())
	m.exited.Store(false)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.setState(StatePolling)

	m.log.Info().
		Str("session", m.session.ID).
		Str("threshold", m.eval.Threshold().String()).
		Dur("poll_interval", m.pollInterval).
		Strs("venues", m.venues).
		Bool("dry_run", m.dryRun).
		Msg("🚀 Monitor started")

	go m.run(m.session, m.stopCh, m.doneCh)
	return nil
}

// Stop signals the loop to finish and waits up to the stop timeout for it.
// Safe to call multiple times and when not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh, doneCh := m.stopCh, m.doneCh
	if stopCh == nil {
		m.mu.Unlock()
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	m.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(m.stopTimeout):
		m.log.Warn().Msg("Stop timeout reached, loop still finishing")
	}
}

// Wait blocks until the loop reaches STOPPED, without requesting a stop.
func (m *Monitor) Wait() {
	m.mu.Lock()
	doneCh := m.doneCh
	m.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
	metrics.State.Set(float64(s))
}

func (m *Monitor) run(s *Session, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	reason := ReasonStopRequested
loop:
	for {
		select {
		case <-stopCh:
			break loop
		default:
		}

		if m.pastMarketClose(m.now()) {
			m.log.Info().Msg("🔔 Market close reached, shutting down")
			reason = ReasonMarketClose
			break loop
		}

		if m.State() == StateCooldown {
			if m.now().Sub(s.LastExitAt) >= m.cooldown {
				m.log.Info().Msg("Cooldown over, resuming position checks")
				m.setState(StatePolling)
				continue
			}
			if !m.sleep(m.cooldownTick, stopCh) {
				break loop
			}
			continue
		}

		if err := m.tick(s, stopCh); err != nil {
			m.log.Error().Err(err).Msg("🚫 Session expired, re-authentication required")
			reason = ReasonAuthError
			break loop
		}

		if !m.sleep(m.pollInterval, stopCh) {
			break loop
		}
	}

	m.setState(StateStopped)
	m.finalize(s, reason)
}

// tick runs one poll cycle. A non-nil return means an unrecoverable auth
// failure; transient errors are absorbed here with an extra poll-interval
// backoff so a failing broker is not hammered at full cadence.
func (m *Monitor) tick(s *Session, stopCh chan struct{}) error {
	book, err := m.source.Positions()
	if err != nil {
		metrics.PollErrors.Inc()
		if kite.IsAuthError(err) {
			return err
		}
		m.log.Warn().Err(err).Dur("retry_in", 2*m.pollInterval).Msg("Position fetch failed, backing off")
		m.sleep(m.pollInterval, stopCh)
		return nil
	}

	s.Polls++
	metrics.Polls.Inc()

	open := positions.FilterOpen(book, m.venues)
	metrics.OpenPositions.Set(float64(len(open)))
	if len(open) == 0 {
		if s.Polls%6 == 1 {
			m.log.Info().Int("polls", s.Polls).Msg("No open positions")
		}
		return nil
	}

	total := positions.TotalPnL(open)
	s.recordPnL(total)
	metrics.AggregatePnL.Set(total.InexactFloat64())

	ratio := m.eval.LossRatio(total)
	metrics.LossRatio.Set(ratio.InexactFloat64())
	band := m.eval.Classify(total)

	switch band {
	case risk.BandBreach:
		m.log.Error().
			Str("pnl", total.StringFixed(2)).
			Str("threshold", m.eval.Threshold().StringFixed(2)).
			Str("ratio", ratio.StringFixed(2)).
			Int("positions", len(open)).
			Msg("🚨 LOSS THRESHOLD BREACHED")
	case risk.BandApproaching:
		m.log.Warn().
			Str("pnl", total.StringFixed(2)).
			Str("ratio", ratio.StringFixed(2)).
			Msg("⚠️ Loss approaching threshold")
	case risk.BandElevated:
		m.log.Info().
			Str("pnl", total.StringFixed(2)).
			Str("ratio", ratio.StringFixed(2)).
			Msg("Elevated loss")
	default:
		m.log.Debug().
			Str("pnl", total.StringFixed(2)).
			Int("positions", len(open)).
			Msg("P&L within limits")
	}

	if s.Polls%30 == 0 {
		m.log.Info().Msg(positions.FormatSummary(open, total))
	}

	if band == risk.BandBreach {
		m.executeExit(s, open, total)
		m.setState(StateCooldown)
		m.log.Info().Dur("cooldown", m.cooldown).Msg("Entering cooldown")
	}
	return nil
}

func (m *Monitor) executeExit(s *Session, open []positions.Position, total decimal.Decimal) {
	metrics.ExitEvents.Inc()
	if m.notifier != nil {
		m.notifier.NotifyBreach(total, m.eval.Threshold(), len(open), m.dryRun)
	}

	results := m.engine.ExitAllPositions(open, m.dryRun)
	s.recordExit(results, m.now())
	m.exited.Store(true)

	ok, failed := executor.Tally(results)
	metrics.ExitOrders.WithLabelValues("ok").Add(float64(ok))
	metrics.ExitOrders.WithLabelValues("failed").Add(float64(failed))

	if m.recorder != nil {
		if err := m.recorder.SaveExitResults(s.ID, results); err != nil {
			m.log.Error().Err(err).Msg("Could not persist exit results")
		}
	}
	if m.notifier != nil {
		m.notifier.NotifyExitResults(results, m.dryRun)
	}

	if !m.dryRun {
		if m.engine.VerifyExitOrders(results, false) {
			m.log.Info().Msg("✅ All exit orders completed")
		} else {
			m.log.Error().Msg("❌ Some exit orders did not complete, check manually")
		}
	}

	// Stamp after verification so the cooldown covers settlement time.
	s.LastExitAt = m.now()
}

func (m *Monitor) finalize(s *Session, reason string) {
	data := s.summary(m.eval.Threshold(), reason, m.now())

	evt := m.log.Info().
		Str("session", s.ID).
		Str("reason", reason).
		Int("polls", data.Polls).
		Int("exit_events", data.ExitEvents).
		Int("orders_ok", data.OrdersOK).
		Int("orders_failed", data.OrdersFailed).
		Dur("duration", data.Duration)
	if data.HasPnL {
		evt = evt.
			Str("last_pnl", data.LastPnL.StringFixed(2)).
			Str("peak_loss", data.PeakLoss.StringFixed(2))
	}
	evt.Msg("🏁 Session finished")

	if m.recorder != nil {
		summary := &storage.SessionSummary{
			ID:           s.ID,
			Polls:        data.Polls,
			LastPnL:      data.LastPnL,
			PeakLoss:     data.PeakLoss,
			Threshold:    data.Threshold,
			ExitEvents:   data.ExitEvents,
			OrdersOK:     data.OrdersOK,
			OrdersFailed: data.OrdersFailed,
			StopReason:   reason,
			DryRun:       m.dryRun,
			StartedAt:    s.StartedAt,
			EndedAt:      m.now(),
		}
		if err := m.recorder.SaveSummary(summary); err != nil {
			m.log.Error().Err(err).Msg("Could not persist session summary")
		}
	}
	if m.notifier != nil {
		m.notifier.NotifySummary(data)
	}
}

// pastMarketClose reports whether t (in the configured timezone) is at or
// past the market close cutoff.
func (m *Monitor) pastMarketClose(t time.Time) bool {
	local := t.In(m.loc)
	if local.Hour() != m.closeHour {
		return local.Hour() > m.closeHour
	}
	return local.Minute() >= m.closeMinute
}

// sleep waits for d unless a stop is requested. Returns false on stop.
func (m *Monitor) sleep(d time.Duration, stopCh chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}
