// kiosk runs the face-tracking identity pipeline of the smart-fridge kiosk
// and provides diagnostic subcommands for its backing services.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kiosk/internal/config"
	"github.com/teslashibe/go-kiosk/internal/log"
)

var (
	logLevel   string
	tuningFile string
)

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Face-tracking identity pipeline for the smart-fridge kiosk",
	Long: `kiosk watches the camera in front of the fridge, classifies how close the
nearest face is, asks the local recognition service who it is, and publishes
the current member to the kiosk UI over HTTP and WebSocket.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&tuningFile, "tuning", "", "YAML tuning file (overrides KIOSK_TUNING_FILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads env and flags, and initializes logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if tuningFile != "" {
		cfg.TuningFile = tuningFile
		if err := cfg.LoadTuningFile(tuningFile); err != nil {
			return cfg, err
		}
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
