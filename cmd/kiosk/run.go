package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kiosk/internal/log"
	"github.com/teslashibe/go-kiosk/pkg/kiosk"
)

var (
	runCamera string
	runPort   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the kiosk identity pipeline",
	RunE:  runKiosk,
}

func init() {
	runCmd.Flags().StringVar(&runCamera, "camera", "", "Camera device index or video file (overrides CAMERA_DEVICE)")
	runCmd.Flags().StringVar(&runPort, "port", "", "State server port (overrides KIOSK_PORT)")
	rootCmd.AddCommand(runCmd)
}

func runKiosk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runCamera != "" {
		cfg.CameraDevice = runCamera
	}
	if runPort != "" {
		cfg.Port = runPort
	}

	app, err := kiosk.New(cfg, log.L())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
