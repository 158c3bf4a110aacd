package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/segura08m/InnerNode/internal/control"
	"github.com/segura08m/InnerNode/internal/core/config"
	"github.com/segura08m/InnerNode/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher until interrupted",
	Run:   runWatcher,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWatcher(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init(logger.Options{})
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := cfg.Log.Level
	if isDebug {
		level = "debug"
	}
	log := logger.Init(logger.Options{Level: level, Format: cfg.Log.Format})

	app, err := control.New(*cfg, log)
	if err != nil {
		log.Error("failed to initialize watcher", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting watcher",
		"config", cfgPath,
		"chain_id", cfg.Chain.ChainID,
		"contract", cfg.Chain.ContractAddress,
	)

	err = app.Start(ctx)
	app.Close()
	if err != nil {
		log.Error("watcher terminated", "error", err)
		os.Exit(1)
	}
}
