package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lyrik/internal/app"
	"lyrik/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	FlagConfig   string
	FlagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "lyrik",
	Short:         "Follow the current track and show synced lyrics",
	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&FlagConfig, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrik/config.toml)")
	rootCmd.PersistentFlags().StringVar(&FlagLogLevel, "log-level", "", "override app.log_level")

	rootCmd.AddCommand(fetchCmd, sourcesCmd, watchCmd)
}

// loadConfig 读取配置并按配置的级别重新设置日志
func loadConfig() *config.Config {
	app.SetupLogging("info")
	cfg := config.Load(FlagConfig)
	if FlagLogLevel != "" {
		cfg.App.LogLevel = FlagLogLevel
	}
	app.SetupLogging(cfg.App.LogLevel)
	return cfg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("lyrik failed")
		stop()
		os.Exit(1)
	}
}
