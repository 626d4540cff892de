package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/alert"
	"github.com/hamed0406/alertwatcher/internal/config"
	"github.com/hamed0406/alertwatcher/internal/failover"
	"github.com/hamed0406/alertwatcher/internal/httpapi"
	apimw "github.com/hamed0406/alertwatcher/internal/httpapi/middleware"
	"github.com/hamed0406/alertwatcher/internal/logging"
	"github.com/hamed0406/alertwatcher/internal/metrics"
	"github.com/hamed0406/alertwatcher/internal/notify"
	"github.com/hamed0406/alertwatcher/internal/repo"
	"github.com/hamed0406/alertwatcher/internal/repo/memory"
	"github.com/hamed0406/alertwatcher/internal/repo/postgres"
	"github.com/hamed0406/alertwatcher/internal/scheduler"
	"github.com/hamed0406/alertwatcher/internal/tail"
	"github.com/hamed0406/alertwatcher/internal/watcher"
	"github.com/hamed0406/alertwatcher/internal/window"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("env file ignored: %v", err)
	}
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Running without a webhook would mean silently never alerting.
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}
	mode, _ := failover.ParseMode(cfg.FailoverMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	journal, closeJournal := openJournal(ctx, cfg, logger)
	defer closeJournal()

	tracker := window.NewTracker(cfg.WindowSize)
	machine := alert.NewMachine(buildNotifier(cfg, logger), alert.MachineConfig{
		Cooldown:        cfg.Cooldown,
		DispatchTimeout: cfg.DispatchTimeout,
		Maintenance:     cfg.Maintenance,
		Journal:         journal,
		Recorder:        m,
	}, logger)
	engine := watcher.NewEngine(tracker, failover.NewDetector(mode), machine, watcher.Options{
		Policy: alert.Policy{
			Threshold:  cfg.ErrorRateThreshold,
			MinSamples: cfg.MinSampleFloor,
			Window:     cfg.WindowSize,
		},
		Observer: m,
	}, logger)

	logger.Info("watcher_config",
		zap.String("log_file", cfg.LogFile),
		zap.Int("webhooks", len(cfg.WebhookURLs)),
		zap.Duration("window", cfg.WindowSize),
		zap.Float64("threshold", cfg.ErrorRateThreshold),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.Bool("maintenance", cfg.Maintenance),
		zap.String("failover_match", string(mode)),
	)

	var wg sync.WaitGroup

	sweeper := scheduler.NewSweeper(logger, tracker, m, cfg.SweepSchedule)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("sweeper_failed", zap.Error(err))
		}
	}()

	if cfg.Addr != "" {
		api := httpapi.NewServer(logger, engine, machine, journal, m.Handler())
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Router(apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}, cfg.AllowedOrigins, cfg.RateLimitRPM, cfg.RateLimitBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			logger.Info("api_listen", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api_failed", zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	follower := tail.NewFollower(cfg.LogFile, cfg.TailFromStart, cfg.PollMax, logger)
	if err := watcher.Run(ctx, follower, engine); err != nil {
		logger.Error("watcher_failed", zap.Error(err))
		stop()
	}

	wg.Wait()
	logger.Info("shutdown_complete")
}

func buildNotifier(cfg config.Config, logger *zap.Logger) notify.Notifier {
	var out notify.Multi
	for _, url := range cfg.WebhookURLs {
		s := notify.NewSlack(url, cfg.DispatchTimeout)
		s.Username = cfg.BotName
		s.Icon = cfg.BotIcon

		var n notify.Notifier = s
		if cfg.BreakerFailures > 0 {
			n = notify.NewBreaker(s, uint32(cfg.BreakerFailures), 0, logger)
		}
		out = append(out, n)
	}
	return out
}

// openJournal uses Postgres when DATABASE_URL is set and falls back to the
// in-memory ring otherwise, or when the database is unreachable.
func openJournal(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.AlertJournal, func()) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err == nil {
			return pg, pg.Close
		}
		logger.Warn("alert_journal_fallback", zap.Error(err))
	}
	return memory.NewJournal(memory.DefaultCapacity), func() {}
}
