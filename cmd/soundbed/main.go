package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/logging"
)

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "soundbed",
	Short:         "soundbed - narration over music, audio from video",
	Long:          "An HTTP service and CLI that extracts audio from video and mixes narration over a looped, ducked and faded music bed.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose, jsonLogs)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// file settings can only turn these on
		if cfg.Logging.Verbose || cfg.Logging.JSON {
			logging.Init(verbose || cfg.Logging.Verbose, jsonLogs || cfg.Logging.JSON)
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log one JSON object per line")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mixCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
}
