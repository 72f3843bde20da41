// Package notify pushes breach and exit alerts to Telegram. The bot is
// send-only; without a token the monitor simply runs without notifications.
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/exitwave/internal/executor"
)

// Telegram sends alerts to a single chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram connects the bot. An empty token returns (nil, nil) so the
// caller can wire nothing without an error path.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}
	if chatID == 0 {
		return nil, fmt.Errorf("notify: TELEGRAM_CHAT_ID is required when a bot token is set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}

	nlog := log.With().Str("component", "notify").Logger()
	nlog.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Telegram{api: api, chatID: chatID, log: nlog}, nil
}

// NotifyBreach alerts that the loss threshold was crossed and an exit is
// in flight.
func (t *Telegram) NotifyBreach(pnl, threshold decimal.Decimal, positionCount int, dryRun bool) {
	t.send(BuildBreachMessage(pnl, threshold, positionCount, dryRun))
}

// NotifyExitResults reports one exit batch.
func (t *Telegram) NotifyExitResults(results []executor.ExitOrderResult, dryRun bool) {
	t.send(BuildExitResultsMessage(results, dryRun))
}

// SummaryData carries the end-of-session figures for the final alert.
type SummaryData struct {
	Polls        int
	LastPnL      decimal.Decimal
	HasPnL       bool
	PeakLoss     decimal.Decimal
	Threshold    decimal.Decimal
	ExitEvents   int
	OrdersOK     int
	OrdersFailed int
	StopReason   string
	Duration     time.Duration
}

// NotifySummary sends the final session summary.
func (t *Telegram) NotifySummary(s SummaryData) {
	t.send(BuildSummaryMessage(s))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.api.Send(msg); err != nil {
		t.log.Warn().Err(err).Msg("Telegram send failed")
	}
}

// BuildBreachMessage renders the breach alert text.
func BuildBreachMessage(pnl, threshold decimal.Decimal, positionCount int, dryRun bool) string {
	var b strings.Builder
	if dryRun {
		b.WriteString("🚨 *THRESHOLD BREACHED* (dry run)\n")
	} else {
		b.WriteString("🚨 *THRESHOLD BREACHED*\n")
	}
	fmt.Fprintf(&b, "P&L: `%s`\n", pnl.StringFixed(2))
	fmt.Fprintf(&b, "Threshold: `-%s`\n", threshold.StringFixed(2))
	fmt.Fprintf(&b, "Exiting %d position(s)...", positionCount)
	return b.String()
}

// BuildExitResultsMessage renders one exit batch.
func BuildExitResultsMessage(results []executor.ExitOrderResult, dryRun bool) string {
	ok, failed := executor.Tally(results)

	var b strings.Builder
	if dryRun {
		b.WriteString("📝 *Exit orders* (dry run)\n")
	} else {
		b.WriteString("📋 *Exit orders*\n")
	}
	for _, r := range results {
		mark := "✅"
		if !r.Success {
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %s %d %s", mark, r.TransactionType, r.Quantity, r.TradingSymbol)
		if !r.Success && r.Error != "" {
			fmt.Fprintf(&b, ": %s", r.Error)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Placed: %d, failed: %d", ok, failed)
	return b.String()
}

// BuildSummaryMessage renders the end-of-session summary.
func BuildSummaryMessage(s SummaryData) string {
	var b strings.Builder
	b.WriteString("🏁 *ExitWave session ended*\n")
	fmt.Fprintf(&b, "Reason: %s\n", s.StopReason)
	fmt.Fprintf(&b, "Polls: %d over %s\n", s.Polls, s.Duration.Round(time.Second))
	if s.HasPnL {
		fmt.Fprintf(&b, "Last P&L: `%s`\n", s.LastPnL.StringFixed(2))
	} else {
		b.WriteString("Last P&L: n/a\n")
	}
	fmt.Fprintf(&b, "Peak loss: `%s`\n", s.PeakLoss.StringFixed(2))
	fmt.Fprintf(&b, "Threshold: `-%s`\n", s.Threshold.StringFixed(2))
	fmt.Fprintf(&b, "Exit events: %d\n", s.ExitEvents)
	if s.ExitEvents > 0 {
		fmt.Fprintf(&b, "Exit orders: %d succeeded, %d failed", s.OrdersOK, s.OrdersFailed)
	} else {
		b.WriteString("No exit was triggered.")
	}
	return b.String()
}
