package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/video-system/go-tether/internal/log"
	"github.com/video-system/go-tether/pkg/capture"
)

const version = "1.0.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "tether",
	Short:         "Tethered camera capture service",
	Long:          "Drives a Canon camera over the EDSDK: stills, movies and live view, exposed over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tether %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tether.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")
	rootCmd.AddCommand(serveCmd, devicesCmd, shootCmd, versionCmd)
}

// loadConfig reads the config file and configures logging. A missing file
// is only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*capture.Config, error) {
	cfg, err := capture.LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = capture.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "tether"})
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := log.WithComponent("tether")
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
