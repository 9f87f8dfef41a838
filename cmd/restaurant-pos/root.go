package main

import (
	"github.com/spf13/cobra"

	"restaurant-pos/internal/common/config"
	"restaurant-pos/internal/common/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "restaurant-pos",
	Short: "Restaurant point-of-sale and delivery management backend",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(etaWorkerCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
