package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/sensorguard/internal/config"
	"github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/httpapi"
	"github.com/BrandonDHaskell/sensorguard/internal/logging"
	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/notify"
	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
	"github.com/BrandonDHaskell/sensorguard/internal/oracle/adb"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/memory"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/sqlite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg)
	},
}

type oracles struct {
	access oracle.AccessOracle
	device oracle.DeviceStateOracle
	meta   oracle.AppMetadata
}

func openOracles(ctx context.Context, cfg config.Config, loc *time.Location, logger *slog.Logger) oracles {
	if cfg.Oracle.Type != "adb" {
		logger.Warn("no access oracle configured; monitoring will observe nothing")
		n := oracle.Nop{}
		return oracles{access: n, device: n, meta: n}
	}

	c := adb.New(adb.Config{
		Path:           cfg.Oracle.ADBPath,
		Serial:         cfg.Oracle.Serial,
		CommandTimeout: cfg.Oracle.CommandTimeout.Duration,
		Location:       loc,
		Logger:         logging.Component(logger, "adb"),
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Oracle.CommandTimeout.Duration)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		// Not fatal: the device may be attached later; ticks record the failures.
		logger.Warn("adb device not reachable", "error", err)
	}
	return oracles{access: c, device: c, meta: c}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.Database.Type == "memory" {
		return memory.New(), func() {}, nil
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.Database.Path, Env: cfg.Database.Env})
	if err != nil {
		return nil, nil, err
	}
	writer := db.NewWorker(sqlDB)
	closeFn := func() {
		writer.Close()
		_ = sqlDB.Close()
	}
	return sqlite.New(sqlDB, writer), closeFn, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if len(cfg.Notify.URLs) == 0 {
		return notify.LogNotifier{Logger: logger}, nil
	}
	return notify.NewShoutrrr(cfg.Notify.URLs, cfg.Notify.Timeout.Duration)
}

func newAppDirectory(cfg config.Config, meta oracle.AppMetadata, logger *slog.Logger) *service.AppDirectory {
	return service.NewAppDirectory(meta, time.Hour, cfg.Oracle.CommandTimeout.Duration, logging.Component(logger, "apps"))
}

func runDaemon(ctx context.Context, cfg config.Config) error {
	logger, logCloser, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	orc := openOracles(ctx, cfg, loc, logger)

	notifier, err := newNotifier(cfg, logging.Component(logger, "notify"))
	if err != nil {
		return err
	}
	queue := notify.NewQueue(notifier, notify.QueueConfig{
		Size:        cfg.Notify.QueueSize,
		MinInterval: cfg.Notify.MinInterval.Duration,
		Burst:       cfg.Notify.Burst,
		Timeout:     cfg.Notify.Timeout.Duration,
	}, logging.Component(logger, "notify"), m)

	classifier := service.NewClassifier()
	dispatcher := service.NewAlertDispatcher(st, queue, logging.Component(logger, "dispatcher"),
		service.WithDispatcherMetrics(m))
	apps := newAppDirectory(cfg, orc.meta, logger)

	sched := service.NewScheduler(service.SchedulerConfig{
		Interval:           cfg.Monitor.Interval.Duration,
		OracleTimeout:      cfg.Monitor.OracleTimeout.Duration,
		HostAppID:          cfg.Monitor.HostAppID,
		MaxParallelQueries: cfg.Monitor.MaxParallelQueries,
		Location:           loc,
	}, service.SchedulerDeps{
		Store:      st,
		Access:     orc.access,
		Device:     orc.device,
		Apps:       apps,
		Classifier: classifier,
		Dispatcher: dispatcher,
		Logger:     logging.Component(logger, "scheduler"),
		Metrics:    m,
	})

	guardian := service.NewGuardian(st, sched, classifier, loc, logger)
	if err := guardian.Resume(ctx); err != nil {
		return err
	}

	pruner := service.NewRetentionPruner(st, classifier, service.PrunerConfig{
		RetentionDays: cfg.Retention.LogRetentionDays,
		IntervalHours: cfg.Retention.PruneIntervalHours,
	}, logging.Component(logger, "pruner"), m)
	pruner.Start(ctx)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logging.Component(logger, "httpapi"),
		Addr:     cfg.Server.HTTPAddr,
		Guardian: guardian,
		Metrics:  m,
	})

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-srvErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// Scheduler before queue: a tick finishing now may still enqueue alerts.
	guardian.Shutdown()
	pruner.Stop()
	queue.Close()
	logger.Info("shutdown complete")
	return err
}
