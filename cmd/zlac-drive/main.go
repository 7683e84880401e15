package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zlac-drive/internal/canopen"
	"zlac-drive/internal/config"
	"zlac-drive/internal/driver"
	"zlac-drive/internal/logutil"
	"zlac-drive/internal/telemetry"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "zlac-drive",
		Short:        "differential-drive velocity controller for ZLAC wheel drives",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file path (yaml)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override configured log level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logutil.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup failures are the only fatal errors; once the loop runs,
	// everything is throttled and survived.
	bus, err := canopen.Dial(ctx, cfg.Bus.Interface, cfg.Bus.NodeIDs.Array(), cfg.Bus.SDOTimeout(), log)
	if err != nil {
		log.Fatalf("could not open CAN bus: %v", err)
	}
	defer bus.Close()

	mq, err := telemetry.NewClient(cfg.MQTT, log)
	if err != nil {
		log.Fatalf("could not reach MQTT broker: %v", err)
	}
	defer mq.Close()

	drv := driver.New(cfg, bus, mq, log)
	if err := mq.SubscribeCommands(drv.SubmitCommand); err != nil {
		log.Fatalf("could not subscribe to velocity commands: %v", err)
	}

	log.Info("driver initialization done")
	if err := drv.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
