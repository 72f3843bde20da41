// Package executor flattens open F&O positions: it computes the square-off
// transaction for each position, places market exit orders with bounded
// retry and verifies that the broker actually filled them.
package executor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/web3guy0/exitwave/internal/kite"
	"github.com/web3guy0/exitwave/internal/positions"
)

const (
	// DryRunOrderID is the sentinel order id for simulated exits. Dry-run
	// results look exactly like real successes so summary code never
	// branches on the mode.
	DryRunOrderID = "DRY_RUN"

	// TransactionNone marks a position that needs no exit order.
	TransactionNone = "NONE"

	orderTag = "exitwave"

	defaultMaxAttempts = 3
	defaultRetryDelay  = 1 * time.Second
	defaultSettleDelay = 2 * time.Second
)

// Broker is the slice of the Kite client the executor needs.
type Broker interface {
	PlaceMarketOrder(p kite.OrderParams) (string, error)
	OrderHistory(orderID string) ([]kite.Order, error)
}

// ExitOrderResult is the outcome of one attempted exit order. Never mutated
// after the attempt finishes.
type ExitOrderResult struct {
	TradingSymbol   string
	Exchange        string
	TransactionType string // BUY, SELL or NONE
	Quantity        int
	OrderID         string
	Success         bool
	Error           string
}

// Engine places and verifies exit orders through a Broker.
type Engine struct {
	broker Broker
	log    zerolog.Logger

	maxAttempts int
	retryDelay  time.Duration
	settleDelay time.Duration
}

// NewEngine creates an exit engine with the production retry policy
// (3 attempts, 1s pause, 2s settling delay before verification).
func NewEngine(broker Broker, log zerolog.Logger) *Engine {
	return &Engine{
		broker:      broker,
		log:         log.With().Str("component", "executor").Logger(),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		settleDelay: defaultSettleDelay,
	}
}

// SetDelays shrinks the retry and settling pauses. Used by tests.
func (e *Engine) SetDelays(retry, settle time.Duration) {
	e.retryDelay = retry
	e.settleDelay = settle
}

// CloseTransaction returns the transaction that flattens the position:
// SELL for a long, BUY for a short, empty for a flat position.
func CloseTransaction(pos positions.Position) string {
	switch {
	case pos.Quantity > 0:
		return kite.TransactionSell
	case pos.Quantity < 0:
		return kite.TransactionBuy
	default:
		return ""
	}
}

// PlaceExitOrder squares off a single position with a market day order.
// A zero-quantity position yields a pre-failed result without touching the
// broker. In dry-run mode the result is an immediate success carrying the
// DRY_RUN sentinel id.
func (e *Engine) PlaceExitOrder(pos positions.Position, dryRun bool) ExitOrderResult {
	transaction := CloseTransaction(pos)
	if transaction == "" {
		return ExitOrderResult{
			TradingSymbol:   pos.TradingSymbol,
			Exchange:        pos.Exchange,
			TransactionType: TransactionNone,
			Error:           "position has zero quantity, nothing to exit",
		}
	}

	quantity := pos.Quantity
	if quantity < 0 {
		quantity = -quantity
	}

	result := ExitOrderResult{
		TradingSymbol:   pos.TradingSymbol,
		Exchange:        pos.Exchange,
		TransactionType: transaction,
		Quantity:        quantity,
	}

	if dryRun {
		e.log.Info().
			Str("symbol", pos.TradingSymbol).
			Str("transaction", transaction).
			Int("quantity", quantity).
			Msg("📝 DRY RUN: exit order would be placed")
		result.Success = true
		result.OrderID = DryRunOrderID
		return result
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		orderID, err := e.broker.PlaceMarketOrder(kite.OrderParams{
			Exchange:        pos.Exchange,
			TradingSymbol:   pos.TradingSymbol,
			TransactionType: transaction,
			Quantity:        quantity,
			Product:         pos.Product,
			Tag:             orderTag,
		})
		if err == nil {
			result.OrderID = orderID
			result.Success = true
			result.Error = ""
			e.log.Info().
				Str("symbol", pos.TradingSymbol).
				Str("transaction", transaction).
				Int("quantity", quantity).
				Str("order_id", orderID).
				Msg("✅ Exit order placed")
			return result
		}

		result.Error = err.Error()
		e.log.Warn().
			Str("symbol", pos.TradingSymbol).
			Int("attempt", attempt).
			Int("max_attempts", e.maxAttempts).
			Err(err).
			Msg("Exit order attempt failed")

		if attempt < e.maxAttempts {
			time.Sleep(e.retryDelay)
		}
	}

	e.log.Error().
		Str("symbol", pos.TradingSymbol).
		Str("error", result.Error).
		Msg("❌ Exit order failed after all attempts")
	return result
}

// ExitAllPositions squares off every given position sequentially, one result
// per input position in input order. An empty input short-circuits to an
// empty result list.
func (e *Engine) ExitAllPositions(list []positions.Position, dryRun bool) []ExitOrderResult {
	if len(list) == 0 {
		return nil
	}

	e.log.Warn().
		Int("positions", len(list)).
		Bool("dry_run", dryRun).
		Msg("🚨 Exiting all open F&O positions")

	results := make([]ExitOrderResult, 0, len(list))
	for _, pos := range list {
		results = append(results, e.PlaceExitOrder(pos, dryRun))
	}

	ok, failed := Tally(results)
	if failed == 0 {
		e.log.Info().Int("placed", ok).Msg("All exit orders placed")
	} else {
		e.log.Error().Int("placed", ok).Int("failed", failed).Msg("Some exit orders FAILED")
		for _, r := range results {
			if !r.Success {
				e.log.Error().
					Str("symbol", r.TradingSymbol).
					Str("transaction", r.TransactionType).
					Int("quantity", r.Quantity).
					Str("error", r.Error).
					Msg("  failed exit order")
			}
		}
	}
	return results
}

// VerifyExitOrders checks that every successfully placed order actually
// completed at the broker. It returns true only when every checked order's
// latest status is COMPLETE; zero checkable orders counts as failed since
// nothing could be confirmed. A lookup failure for one order does not stop
// verification of the rest.
func (e *Engine) VerifyExitOrders(results []ExitOrderResult, dryRun bool) bool {
	if dryRun {
		e.log.Info().Msg("DRY RUN: skipping order verification")
		return true
	}

	var placed []ExitOrderResult
	for _, r := range results {
		if r.Success && r.OrderID != "" {
			placed = append(placed, r)
		}
	}
	if len(placed) == 0 {
		return false
	}

	e.log.Info().Int("orders", len(placed)).Msg("Verifying exit order statuses")
	time.Sleep(e.settleDelay)

	allComplete := true
	for _, r := range placed {
		history, err := e.broker.OrderHistory(r.OrderID)
		if err != nil {
			e.log.Error().Str("order_id", r.OrderID).Err(err).Msg("Order status lookup failed")
			allComplete = false
			continue
		}
		if len(history) == 0 {
			e.log.Warn().Str("order_id", r.OrderID).Msg("Order has no status history yet")
			allComplete = false
			continue
		}

		latest := history[len(history)-1]
		switch latest.Status {
		case kite.StatusComplete:
			e.log.Info().
				Str("symbol", r.TradingSymbol).
				Str("order_id", r.OrderID).
				Msg("✅ Exit order confirmed COMPLETE")
		case kite.StatusRejected:
			e.log.Error().
				Str("symbol", r.TradingSymbol).
				Str("order_id", r.OrderID).
				Str("reason", latest.StatusMessage).
				Msg("❌ Exit order REJECTED")
			allComplete = false
		default:
			e.log.Warn().
				Str("symbol", r.TradingSymbol).
				Str("order_id", r.OrderID).
				Str("status", latest.Status).
				Msg("Exit order still pending")
			allComplete = false
		}
	}
	return allComplete
}

// Tally counts successful and failed results.
func Tally(results []ExitOrderResult) (ok, failed int) {
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
