package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupelens/internal/fpcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Fingerprint cache utilities",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fingerprint cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := fpcache.Open(cfg.Paths.CacheFile, nil)
			if err != nil {
				return fmt.Errorf("open fingerprint cache: %w", err)
			}
			defer cache.Close()
			cache.Load()

			size := "0 B"
			if info, err := os.Stat(cfg.Paths.CacheFile); err == nil {
				size = humanize.IBytes(uint64(info.Size()))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache file:  %s\n", cache.Path())
			fmt.Fprintf(out, "Entries:     %d\n", cache.Len())
			fmt.Fprintf(out, "Log size:    %s\n", size)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to clear the cache without --yes")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := fpcache.Open(cfg.Paths.CacheFile, nil)
			if err != nil {
				return fmt.Errorf("open fingerprint cache: %w", err)
			}
			defer cache.Close()
			cache.Load()

			entries := cache.Len()
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached entries.\n", entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm clearing the cache")
	return cmd
}
