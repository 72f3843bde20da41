package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KITE_API_KEY", "key")
	t.Setenv("KITE_API_SECRET", "secret")
	t.Setenv("MAX_LOSS", "5000")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.MaxLoss.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "15:30", cfg.MarketClose)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, []string{"NFO", "BFO"}, cfg.Exchanges)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, 30*time.Second, cfg.StopTimeout)
	assert.False(t, cfg.DryRun)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("EXCHANGES", "nfo, mcx")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("EXIT_COOLDOWN", "1m")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"NFO", "MCX"}, cfg.Exchanges)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, time.Minute, cfg.Cooldown)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("KITE_API_KEY", "")
	t.Setenv("KITE_API_SECRET", "")
	t.Setenv("MAX_LOSS", "5000")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMaxLossValidation(t *testing.T) {
	t.Setenv("KITE_API_KEY", "key")
	t.Setenv("KITE_API_SECRET", "secret")

	t.Setenv("MAX_LOSS", "")
	_, err := Load()
	assert.Error(t, err, "missing MAX_LOSS must be rejected")

	t.Setenv("MAX_LOSS", "-5000")
	_, err = Load()
	assert.Error(t, err, "negative MAX_LOSS must be rejected")
}

func TestLoadInvalidChatID(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseMarketClose(t *testing.T) {
	h, m, err := ParseMarketClose("15:30")
	require.NoError(t, err)
	assert.Equal(t, 15, h)
	assert.Equal(t, 30, m)

	for _, bad := range []string{"1530", "25:00", "15:70", "ab:cd", ""} {
		_, _, err := ParseMarketClose(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadInvalidMarketClose(t *testing.T) {
	setRequired(t)
	t.Setenv("MARKET_CLOSE", "late")

	_, err := Load()
	assert.Error(t, err)
}
