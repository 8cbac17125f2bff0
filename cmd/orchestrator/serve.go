/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/chain"
	"github.com/orbit-sync/transferd/internal/core/config"
	"github.com/orbit-sync/transferd/internal/core/db"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/store"
	"github.com/orbit-sync/transferd/internal/endpoint"
	"github.com/orbit-sync/transferd/internal/monitor"
	"github.com/orbit-sync/transferd/internal/queue"
	"github.com/orbit-sync/transferd/internal/scheduler"
	"github.com/orbit-sync/transferd/internal/throttle"
	"github.com/orbit-sync/transferd/internal/worker"
)

// serveCmd starts every long-running component: the worker pool, the
// scheduler and the event monitors, all sharing one queue and one set of
// stores.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration engine",
	Run: func(_ *cobra.Command, _ []string) {
		config.InitConfig(cfgFile)
		cfg := config.Cfg

		logger.InitLogger(logger.Environment(cfg.App.Environment), logger.LogLevel(cfg.Log.Level), cfg.Log.Levels)
		log := logger.Named("cmd.serve")
		log.Info("starting orchestrator")

		dbClient, err := db.InitDB(db.InitDBOptions{
			DSN:           db.FileSDN(cfg.Database.Path),
			MigrationMode: db.ParseMigrationMode(cfg.Database.MigrationMode),
			EnableDebug:   cfg.App.Environment == "development",
			Environment:   cfg.App.Environment,
		})
		if err != nil {
			log.Fatal("failed to initialize database", zap.Error(err))
		}
		defer db.CloseDB(dbClient)

		jobs := store.NewJobStore(dbClient)
		transfers := store.NewTransferStore(dbClient)
		endpoints := store.NewEndpointStore(dbClient)
		templates := store.NewTemplateStore(dbClient)

		if n, err := jobs.ResetStuckRunning(context.Background()); err != nil {
			log.Error("failed to reset stuck jobs", zap.Error(err))
		} else if n > 0 {
			log.Info("reset stuck running jobs from previous crash", zap.Int("count", n))
		}

		q := queue.New(queue.Config{
			Addr:      cfg.Queue.RedisAddr,
			DB:        cfg.Queue.RedisDB,
			KeyPrefix: cfg.Queue.KeyPrefix,
			StatusTTL: time.Duration(cfg.Queue.StatusTTL) * time.Second,
		})
		defer q.Close()

		adapter, err := endpoint.New(endpoint.Options{
			BinaryPath: cfg.Rclone.BinaryPath,
			ConfigDir:  cfg.Rclone.ConfigDir,
			BwLimit:    cfg.Rclone.BwLimit,
		})
		if err != nil {
			log.Fatal("failed to initialize endpoint adapter", zap.Error(err))
		}

		throttleCtl := throttle.New(q, endpoints, cfg.Throttle.DefaultLimit)
		chainGen := chain.New()

		pool := worker.New(worker.Options{
			Queue:          q,
			Jobs:           jobs,
			Transfers:      transfers,
			Endpoints:      endpoints,
			Adapter:        adapter,
			Throttle:       throttleCtl,
			ChainGenerator: chainGen,
			AcquireTimeout: time.Duration(cfg.Throttle.AcquireTimeoutSeconds) * time.Second,
		})
		pool.Start(context.Background())
		defer pool.Stop()

		sched := scheduler.New(scheduler.Options{
			Jobs:         jobs,
			Queue:        q,
			WakeInterval: time.Duration(cfg.Scheduler.WakeIntervalSeconds) * time.Second,
		})
		sched.Start(context.Background())
		defer sched.Stop()

		dispatcher := &monitor.Dispatcher{
			Templates: templates,
			Jobs:      jobs,
			Queue:     q,
			Logger:    logger.Named("monitor"),
		}

		fsMonitor := monitor.NewFilesystemMonitor(dispatcher)
		fsCtx, fsCancel := context.WithCancel(context.Background())
		go func() {
			if err := fsMonitor.Start(fsCtx); err != nil {
				log.Error("filesystem monitor stopped", zap.Error(err))
			}
		}()
		defer fsCancel()

		s3Interval := time.Duration(cfg.Monitor.S3PollIntervalSeconds) * time.Second
		s3Monitor, err := monitor.NewS3Monitor(context.Background(), dispatcher, s3Interval)
		if err != nil {
			log.Warn("s3 monitor disabled: failed to resolve aws config", zap.Error(err))
		} else {
			s3Monitor.Start(context.Background())
			defer s3Monitor.Stop()
		}

		log.Info("orchestrator running")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received, stopping orchestrator")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
