package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestClassifyBands(t *testing.T) {
	threshold := dec(5000)

	tests := []struct {
		name string
		pnl  decimal.Decimal
		want Band
	}{
		{"profit is normal", dec(2000), BandNormal},
		{"zero is normal", decimal.Zero, BandNormal},
		{"small loss is normal", dec(-1000), BandNormal},
		{"just below elevated boundary", dec(-2499), BandNormal},
		{"elevated boundary inclusive", dec(-2500), BandElevated},
		{"mid elevated", dec(-3000), BandElevated},
		{"just below approaching boundary", dec(-3999), BandElevated},
		{"approaching boundary inclusive", dec(-4000), BandApproaching},
		{"just below breach", dec(-4999), BandApproaching},
		{"breach boundary inclusive", dec(-5000), BandBreach},
		{"deep breach", dec(-5500), BandBreach},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.pnl, threshold))
		})
	}
}

func TestLossRatio(t *testing.T) {
	// Scenario A from the monitor's end-to-end behavior: -5500 against 5000.
	assert.True(t, LossRatio(dec(-5500), dec(5000)).Equal(dec(1.1)))
	// Scenario B: same loss against a 10000 threshold.
	assert.True(t, LossRatio(dec(-5500), dec(10000)).Equal(dec(0.55)))
	// Gains never produce a loss ratio.
	assert.True(t, LossRatio(dec(5500), dec(5000)).IsZero())
	assert.True(t, LossRatio(decimal.Zero, dec(5000)).IsZero())
}

func TestBreachIffRatioAtLeastOne(t *testing.T) {
	threshold := dec(5000)
	assert.Equal(t, BandBreach, Classify(dec(-5000), threshold))
	assert.NotEqual(t, BandBreach, Classify(dec(-4999.99), threshold))
}

func TestNewEvaluatorValidation(t *testing.T) {
	_, err := NewEvaluator(decimal.Zero)
	assert.Error(t, err)
	_, err = NewEvaluator(dec(-100))
	assert.Error(t, err)

	e, err := NewEvaluator(dec(5000))
	require.NoError(t, err)
	assert.True(t, e.Threshold().Equal(dec(5000)))
	assert.Equal(t, BandApproaching, e.Classify(dec(-4200)))
	assert.True(t, e.LossRatio(dec(-2500)).Equal(dec(0.5)))
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "NORMAL", BandNormal.String())
	assert.Equal(t, "ELEVATED", BandElevated.String())
	assert.Equal(t, "APPROACHING", BandApproaching.String())
	assert.Equal(t, "BREACH", BandBreach.String())
}
