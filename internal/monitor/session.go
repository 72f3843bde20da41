package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/exitwave/internal/executor"
	"github.com/web3guy0/exitwave/internal/notify"
)

// Session accumulates the state of one monitoring run. It is mutated only
// by the loop goroutine; callers read it through Monitor accessors after
// the run has stopped.
type Session struct {
	ID        string
	StartedAt time.Time

	Polls         int
	LastPnL       decimal.Decimal
	HasPnL        bool
	PeakLoss      decimal.Decimal
	ExitEvents    int
	ExitedSymbols map[string]bool
	LastExitAt    time.Time
	Results       []executor.ExitOrderResult
}

func newSession(startedAt time.Time) *Session {
	return &Session{
		ID:            fmt.Sprintf("run_%d", startedAt.UnixNano()),
		StartedAt:     startedAt,
		ExitedSymbols: make(map[string]bool),
	}
}

// recordPnL updates the last observed P&L and tracks the worst loss seen.
func (s *Session) recordPnL(pnl decimal.Decimal) {
	s.LastPnL = pnl
	s.HasPnL = true
	if pnl.LessThan(s.PeakLoss) {
		s.PeakLoss = pnl
	}
}

// recordExit appends one exit event's results and stamps the exit time.
func (s *Session) recordExit(results []executor.ExitOrderResult, at time.Time) {
	s.ExitEvents++
	s.Results = append(s.Results, results...)
	for _, r := range results {
		s.ExitedSymbols[r.TradingSymbol] = true
	}
	s.LastExitAt = at
}

// summary rolls the session up for logging, persistence and notification.
func (s *Session) summary(threshold decimal.Decimal, stopReason string, endedAt time.Time) notify.SummaryData {
	ok, failed := executor.Tally(s.Results)
	return notify.SummaryData{
		Polls:        s.Polls,
		LastPnL:      s.LastPnL,
		HasPnL:       s.HasPnL,
		PeakLoss:     s.PeakLoss,
		Threshold:    threshold,
		ExitEvents:   s.ExitEvents,
		OrdersOK:     ok,
		OrdersFailed: failed,
		StopReason:   stopReason,
		Duration:     endedAt.Sub(s.StartedAt),
	}
}
