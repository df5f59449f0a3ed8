// Command allocator runs one allocation pass: it matches eligible donors to
// damaged educators within the requested school scope, persists the resulting
// transactions, and exits. Scheduling is left to cron or an equivalent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solifund/internal/allocation/calendar"
	"solifund/internal/allocation/engine"
	"solifund/internal/allocation/models"
	"solifund/internal/allocation/notifier"
	donorstore "solifund/internal/allocation/store/donor"
	educatorstore "solifund/internal/allocation/store/educator"
	ledgerstore "solifund/internal/allocation/store/ledger"
	"solifund/internal/platform/config"
	"solifund/internal/platform/httpserver"
	"solifund/internal/platform/logger"
	"solifund/internal/platform/metrics"
	"solifund/internal/platform/postgres"
	platformredis "solifund/internal/platform/redis"
	"solifund/internal/platform/sentinel"
	"solifund/internal/runlock"
	httptransport "solifund/internal/transport/http"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	schoolTypeID := flag.Int64("schoolTypeId", 0, "restrict the run to one school type id (0 means all)")
	schoolIDsFlag := flag.String("schoolIds", "", "comma-separated school ids to restrict the run to")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()

	schoolIDs, err := parseSchoolIDs(*schoolIDsFlag)
	if err != nil {
		log.Error("invalid --schoolIds", "value", *schoolIDsFlag, "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		return 1
	}
	defer db.Close()

	locker, closeLocker, err := buildLocker(cfg, log)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		return 1
	}
	defer closeLocker()

	m := metrics.New()

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithHolidayCalendar(calendar.FromDates(cfg.Holidays)),
	}
	if cfg.SMTP.Addr != "" {
		opts = append(opts, engine.WithNotifier(notifier.NewSMTP(notifier.SMTPConfig{
			Addr: cfg.SMTP.Addr,
			From: cfg.SMTP.From,
		})))
	}

	eng, err := engine.New(
		donorstore.NewPostgres(db),
		educatorstore.NewPostgres(db),
		ledgerstore.NewPostgres(db),
		locker,
		opts...,
	)
	if err != nil {
		log.Error("engine construction failed", "error", err)
		return 1
	}

	if cfg.OpsAddr != "" {
		srv := httpserver.New(cfg.OpsAddr, httptransport.NewRouter(httptransport.Deps{DB: db}))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	params := models.RunParams{
		SchoolTypeID:            *schoolTypeID,
		SchoolIDs:               schoolIDs,
		MinTransactionAmount:    cfg.MinTransactionAmount,
		GlobalMaxDonationAmount: cfg.GlobalMaxDonationAmount,
		AnnualCeiling:           cfg.AnnualCeiling,
	}

	report, err := eng.Run(ctx, params)
	if err != nil {
		if errors.Is(err, sentinel.ErrLockBusy) {
			log.Warn("another allocation run holds the lock, exiting",
				"school_type_id", *schoolTypeID,
				"school_ids", schoolIDs,
			)
			return 1
		}
		log.Error("allocation run failed", "error", err)
		return 1
	}

	if report.HolidaySkip {
		log.Info("holiday, no allocations made", "run_id", report.RunID)
		return 0
	}

	log.Info("allocation run finished",
		"run_id", report.RunID,
		"donors_considered", report.DonorsConsidered,
		"donors_skipped", report.DonorsSkipped,
		"transactions_created", report.TransactionsCreated,
		"amount_allocated", report.AmountAllocated,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return 0
}

// buildLocker prefers the Redis lock when Redis is configured and falls back
// to the in-process lock for single-host deployments.
func buildLocker(cfg config.Config, log *slog.Logger) (runlock.Locker, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("redis not configured, using in-process run lock")
		return runlock.NewMemoryLocker(), func() {}, nil
	}
	return runlock.NewRedisLocker(client.Client), func() { _ = client.Close() }, nil
}

func parseSchoolIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("school id %q is not a positive integer", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
