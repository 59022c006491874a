package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich-connector/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadenrich",
	Short: "BetterContact lead enrichment connector",
	Long:  "Submits single leads to BetterContact for email and phone enrichment, waits for results, and serves the same flows over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal outside local development.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrap(err, "load .env")
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
