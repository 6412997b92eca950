package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "csvstream",
	Short: "Streaming CSV sales aggregation over gRPC",
	Long: `csvstream aggregates "Department Name,Date,Number of Sales" CSV files
into per-department totals while they are still being uploaded.

  csvstream serve       run the gRPC processor
  csvstream gateway     run the HTTP upload gateway
  csvstream standalone  run both in one process`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// the .env file is optional
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		logging.Init()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, gatewayCmd, standaloneCmd, uploadCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Logger.Error("fail LoadConfig", "error", err)
		return nil, err
	}
	return cfg, nil
}
