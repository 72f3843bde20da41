package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/web3guy0/exitwave/internal/auth"
	"github.com/web3guy0/exitwave/internal/config"
	"github.com/web3guy0/exitwave/internal/executor"
	"github.com/web3guy0/exitwave/internal/kite"
	"github.com/web3guy0/exitwave/internal/logging"
	"github.com/web3guy0/exitwave/internal/metrics"
	"github.com/web3guy0/exitwave/internal/monitor"
	"github.com/web3guy0/exitwave/internal/notify"
	"github.com/web3guy0/exitwave/internal/risk"
	"github.com/web3guy0/exitwave/internal/storage"
)

const envFile = ".env"

// reportPreviousSession logs how the last run ended, including any orders
// it placed, so an operator restarting after a liquidation sees it up front.
func reportPreviousSession(db *storage.Database, log zerolog.Logger) {
	summaries, err := db.RecentSummaries(1)
	if err != nil || len(summaries) == 0 {
		return
	}
	last := summaries[0]
	log.Info().
		Str("session", last.ID).
		Str("reason", last.StopReason).
		Int("polls", last.Polls).
		Int("exit_events", last.ExitEvents).
		Time("ended_at", last.EndedAt).
		Msg("Previous session")

	if last.ExitEvents == 0 {
		return
	}
	orders, err := db.ExitOrdersForSession(last.ID)
	if err != nil {
		return
	}
	for _, o := range orders {
		log.Info().
			Str("symbol", o.TradingSymbol).
			Str("side", o.TransactionType).
			Int("qty", o.Quantity).
			Bool("success", o.Success).
			Msg("  exited last session")
	}
}

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	bootLog := zerolog.New(os.Stderr)

	if err := godotenv.Load(envFile); err != nil {
		// Not fatal, config may come from real environment variables.
		bootLog.Warn().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, logCloser, err := logging.Setup(cfg.LogDir, cfg.DryRun, cfg.Debug)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Could not set up logging")
	}
	defer logCloser.Close()

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("              EXITWAVE - F&O LOSS GUARD")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. Storage (exit history and session summaries)
	var db *storage.Database
	if cfg.DatabasePath != "" {
		db, err = storage.New(cfg.DatabasePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("Database connection failed, continuing without persistence")
			db = nil
		} else {
			log.Info().Msg("✅ Storage layer initialized")
			defer db.Close()
			reportPreviousSession(db, log)
		}
	}

	// 2. Broker client and session
	client := kite.NewClient(cfg.APIKey, cfg.AccessToken, log)
	if err := auth.Session(client, cfg, os.Stdin, envFile, log); err != nil {
		log.Fatal().Err(err).Msg("Authentication failed")
	}
	log.Info().Msg("✅ Kite session established")

	// 3. Exit engine
	engine := executor.NewEngine(client, log)
	engine.SetDelays(cfg.RetryDelay, cfg.SettleDelay)
	log.Info().Msg("✅ Execution layer initialized")

	// 4. Threshold evaluator
	eval, err := risk.NewEvaluator(cfg.MaxLoss)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid loss threshold")
	}
	log.Info().Msg("✅ Risk layer initialized")

	// 5. Telegram notifier (optional)
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Telegram setup failed")
	}
	if tg != nil {
		log.Info().Msg("✅ Telegram notifications enabled")
	}

	// 6. Metrics listener (optional)
	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr, log)
	}

	// 7. Order-update stream (optional, observability only)
	var ticker *kite.Ticker
	if cfg.OrderStream {
		ticker = kite.NewTicker(cfg.APIKey, cfg.AccessToken, log)
		if err := ticker.Start(); err != nil {
			log.Warn().Err(err).Msg("Order stream unavailable, continuing without it")
			ticker = nil
		} else {
			log.Info().Msg("✅ Order update stream connected")
			go func() {
				for u := range ticker.Updates() {
					log.Info().
						Str("order_id", u.OrderID).
						Str("symbol", u.TradingSymbol).
						Str("status", u.Status).
						Int("filled", u.FilledQuantity).
						Msg("📬 Order update")
				}
			}()
		}
	}

	// 8. Monitor loop
	mon, err := monitor.New(cfg, client, engine, eval, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Monitor setup failed")
	}
	if db != nil {
		mon.SetRecorder(db)
	}
	if tg != nil {
		mon.SetNotifier(tg)
	}
	log.Info().Msg("✅ Monitor initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// PRINT CONFIG
	// ═══════════════════════════════════════════════════════════════════════════════

	mode := "LIVE"
	if cfg.DryRun {
		mode = "DRY RUN"
	}
	log.Info().Msg("")
	log.Info().Msgf("  Mode:          %s", mode)
	log.Info().Msgf("  Max loss:      ₹%s", cfg.MaxLoss.StringFixed(2))
	log.Info().Msgf("  Poll interval: %s", cfg.PollInterval)
	log.Info().Msgf("  Market close:  %s %s", cfg.MarketClose, cfg.Timezone)
	log.Info().Msgf("  Exchanges:     %v", cfg.Exchanges)
	log.Info().Msg("")

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := mon.Start(); err != nil {
		log.Fatal().Err(err).Msg("Monitor failed to start")
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})
	go func() {
		mon.Wait()
		close(doneCh)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("🛑 Shutting down...")
		mon.Stop()
	case <-doneCh:
		// market close or auth error stopped the loop on its own
	}

	if ticker != nil {
		ticker.Stop()
	}

	if mon.HasExited() {
		log.Warn().Msg("Positions were liquidated this session, review the exit log")
	}
	log.Info().Msg("👋 Goodbye!")
}
