// Package main is the entry point for the marketbrief report bot. It
// evaluates a configured stock portfolio against live market data and
// delivers a plain-text report over Telegram and/or Signal, either once
// or on a cron schedule.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/marketbrief/internal/clientdata"
	"github.com/aristath/marketbrief/internal/clients/signalapi"
	"github.com/aristath/marketbrief/internal/clients/telegram"
	"github.com/aristath/marketbrief/internal/config"
	"github.com/aristath/marketbrief/internal/database"
	"github.com/aristath/marketbrief/internal/journal"
	"github.com/aristath/marketbrief/internal/notify"
	"github.com/aristath/marketbrief/internal/portfolio"
	"github.com/aristath/marketbrief/internal/providers"
	"github.com/aristath/marketbrief/internal/report"
	"github.com/aristath/marketbrief/internal/scheduler"
	"github.com/aristath/marketbrief/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single report and exit")
	pretty := flag.Bool("pretty", false, "human-readable log output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: *pretty})
	logger.SetGlobalLogger(log)

	db, err := database.New(cfg.Cache.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	cacheRepo := clientdata.NewRepositoryWithTTL(db.Conn(), time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	runJournal := journal.NewRepository(db.Conn())

	chain := providers.BuildChain(cfg.Providers, cacheRepo, log)
	cascade := providers.NewCascade(chain, log)

	evaluator := portfolio.NewEvaluator(cascade, portfolio.Config{
		Workers:    cfg.Evaluate.Workers,
		SortBy:     cfg.Report.SortBy,
		Descending: cfg.Report.Descending,
		TopN:       cfg.Report.TopN,
	}, log)

	var notifiers []notify.Notifier
	if cfg.Telegram.Configured() {
		notifiers = append(notifiers, telegram.NewSender(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, log))
	}
	if cfg.Signal.Configured() {
		notifiers = append(notifiers, signalapi.NewSender(cfg.Signal.APIBase, cfg.Signal.Sender, cfg.Signal.Recipients, log))
	}
	deliverer := notify.NewService(notifiers, log)

	formatter := &report.Formatter{
		Header:   cfg.Report.Header,
		Footer:   cfg.Report.Footer,
		MaxBytes: cfg.Report.MaxBytes,
	}

	reportJob := report.NewService(
		cfg.Portfolio.Positions,
		cfg.Report.IncludeIndex,
		cfg.Portfolio.BaseCurrency,
		evaluator,
		cascade,
		formatter,
		deliverer,
		runJournal,
		log,
	)

	if *once || cfg.RunOnce {
		if err := reportJob.Run(); err != nil {
			log.Error().Err(err).Msg("Report run failed")
			os.Exit(1)
		}
		return
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load timezone")
	}

	expr, err := cfg.CronExpression()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build report schedule")
	}

	sched := scheduler.New(loc, log)
	if err := sched.AddJob(expr, reportJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule report job")
	}
	// Housekeeping runs off-peak, well away from report times.
	if err := sched.AddJob("30 3 * * *", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule metadata cleanup")
	}

	sched.Start()
	log.Info().
		Str("schedule", expr).
		Str("timezone", cfg.Schedule.Timezone).
		Msg("marketbrief started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()
}
