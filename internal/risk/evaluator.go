// Package risk classifies aggregate P&L against the configured max-loss
// threshold. Only the breach band triggers action; the lower bands exist so
// the operator can watch the loss approach in the logs.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Band is the severity of the current aggregate P&L relative to the
// threshold, ordered least to most severe.
type Band int

const (
	BandNormal Band = iota
	BandElevated
	BandApproaching
	BandBreach
)

func (b Band) String() string {
	switch b {
	case BandNormal:
		return "NORMAL"
	case BandElevated:
		return "ELEVATED"
	case BandApproaching:
		return "APPROACHING"
	case BandBreach:
		return "BREACH"
	default:
		return "UNKNOWN"
	}
}

var (
	ratioBreach      = decimal.NewFromInt(1)
	ratioApproaching = decimal.NewFromFloat(0.8)
	ratioElevated    = decimal.NewFromFloat(0.5)
)

// LossRatio returns |pnl| / threshold when pnl is a loss, zero otherwise.
func LossRatio(pnl, threshold decimal.Decimal) decimal.Decimal {
	if pnl.Sign() >= 0 {
		return decimal.Zero
	}
	return pnl.Abs().Div(threshold)
}

// Classify maps (pnl, threshold) to a severity band. Pure function; the
// same inputs always yield the same band.
func Classify(pnl, threshold decimal.Decimal) Band {
	ratio := LossRatio(pnl, threshold)
	switch {
	case ratio.GreaterThanOrEqual(ratioBreach):
		return BandBreach
	case ratio.GreaterThanOrEqual(ratioApproaching):
		return BandApproaching
	case ratio.GreaterThanOrEqual(ratioElevated):
		return BandElevated
	default:
		return BandNormal
	}
}

// Evaluator binds a validated threshold so callers can't classify against a
// zero or negative one.
type Evaluator struct {
	threshold decimal.Decimal
}

// NewEvaluator validates the max-loss threshold (must be positive).
func NewEvaluator(threshold decimal.Decimal) (*Evaluator, error) {
	if threshold.Sign() <= 0 {
		return nil, fmt.Errorf("risk: max loss threshold must be positive, got %s", threshold)
	}
	return &Evaluator{threshold: threshold}, nil
}

// Threshold returns the configured max loss.
func (e *Evaluator) Threshold() decimal.Decimal {
	return e.threshold
}

// LossRatio returns the loss ratio for the given aggregate P&L.
func (e *Evaluator) LossRatio(pnl decimal.Decimal) decimal.Decimal {
	return LossRatio(pnl, e.threshold)
}

// Classify returns the severity band for the given aggregate P&L.
func (e *Evaluator) Classify(pnl decimal.Decimal) Band {
	return Classify(pnl, e.threshold)
}
