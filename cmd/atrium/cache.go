package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/internal/cache"
)

// cacheCmd groups the maintenance commands that talk to Redis directly,
// without the catalog service running.
func cacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance commands",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")

	cmd.AddCommand(cacheStatsCmd(&configPath))
	cmd.AddCommand(cacheKeysCmd(&configPath))
	cmd.AddCommand(cacheFlushCmd(&configPath))
	return cmd
}

func openCacheClient(configPath string) (*cache.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	client := cache.New(cache.NewRedisStore(cache.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Ping(ctx); err != nil {
		cancel()
		client.Close()
		return nil, nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	return client, ctx, cancel, nil
}

func cacheStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-namespace key counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, cancel, err := openCacheClient(*configPath)
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			stats, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func cacheKeysCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <pattern>",
		Short: "List cache keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, cancel, err := openCacheClient(*configPath)
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			keys, err := client.KeysMatching(ctx, args[0])
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func cacheFlushCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every cache key regardless of namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, cancel, err := openCacheClient(*configPath)
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			if !client.FlushAll(ctx) {
				return fmt.Errorf("flush failed")
			}
			fmt.Println("cache flushed")
			return nil
		},
	}
}
