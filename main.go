package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meddatachat/internal/config"
	"meddatachat/internal/logging"
	"meddatachat/internal/server"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		if cfg.SessionSecretGenerated() {
			log.Warn().Msg("basic_config.session_secret not set, sessions will not survive a restart")
		}

		srv, err := server.New(cfg)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}
		return srv.Serve(cmd.Context())
	}

	rootCmd := &cobra.Command{
		Use:           "meddatachat",
		Short:         "Ask questions about an uploaded spreadsheet with a hosted language model",
		Version:       Version,
		RunE:          serve,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $"+config.EnvConfigPath+" or ./config.yaml)")
	rootCmd.PersistentFlags().String("addr", config.DefaultServerAddress, "HTTP listen address")
	rootCmd.PersistentFlags().String("provider", config.DefaultProvider, "model provider (gemini|openai|claude)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "log format (console|json)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		RunE:  serve,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meddatachat %s\n", Version)
		},
	})
	return rootCmd
}
