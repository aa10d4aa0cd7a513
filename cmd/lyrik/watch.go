package main

import (
	"fmt"

	"lyrik/pkg/redis"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print updates published to the redis channel",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		rc, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		defer rc.Close()

		w := cmd.OutOrStdout()
		return rc.Watch(cmd.Context(), func(payload string) {
			fmt.Fprintln(w, payload)
		})
	},
}
