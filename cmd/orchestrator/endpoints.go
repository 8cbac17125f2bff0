/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/config"
	"github.com/orbit-sync/transferd/internal/core/db"
	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/store"
	"github.com/orbit-sync/transferd/internal/endpoint"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Manage configured endpoints",
}

var importEndpointsCmd = &cobra.Command{
	Use:   "import [rclone.conf path]",
	Short: "Bulk-import endpoints from an existing rclone.conf file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		config.InitConfig(cfgFile)
		cfg := config.Cfg
		logger.InitLogger(logger.Environment(cfg.App.Environment), logger.LogLevel(cfg.Log.Level), cfg.Log.Levels)
		log := logger.Named("cmd.endpoints.import")

		content, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal("failed to read rclone.conf", zap.Error(err))
		}

		endpoints, err := endpoint.ImportRcloneConf(string(content))
		if err != nil {
			log.Fatal("failed to parse rclone.conf", zap.Error(err))
		}

		dbClient, err := db.InitDB(db.InitDBOptions{
			DSN:           db.FileSDN(cfg.Database.Path),
			MigrationMode: db.ParseMigrationMode(cfg.Database.MigrationMode),
			Environment:   cfg.App.Environment,
		})
		if err != nil {
			log.Fatal("failed to initialize database", zap.Error(err))
		}
		defer db.CloseDB(dbClient)

		endpointStore := store.NewEndpointStore(dbClient)
		for _, ep := range endpoints {
			if err := endpointStore.Create(context.Background(), ep); err != nil {
				log.Error("failed to import endpoint", zap.String("name", ep.Name), zap.Error(err))
				continue
			}
			log.Info("imported endpoint", zap.String("name", ep.Name), zap.String("kind", string(ep.Kind)))
		}
	},
}

func init() {
	endpointsCmd.AddCommand(importEndpointsCmd)
	rootCmd.AddCommand(endpointsCmd)
}
