package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightbox/internal/quota"
	"lightbox/internal/thumbcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the thumbnail cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheVerifyCommand(ctx))

	return cacheCmd
}

type cacheStatsView struct {
	quota.Stats
	CatalogEntries int  `json:"catalog_entries"`
	CachingEnabled bool `json:"caching_enabled"`
	VerifySource   bool `json:"verify_source"`
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage and quota state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			_, q := buildStore(cfg, logger)

			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}

			view := cacheStatsView{
				Stats:          stats,
				CachingEnabled: stats.MaxBytes > 0,
				VerifySource:   cfg.Cache.VerifySource,
			}
			if cat := openCatalog(cmd, cfg); cat != nil {
				defer cat.Close()
				if count, err := cat.Count(cmd.Context()); err == nil {
					view.CatalogEntries = count
				}
			}

			if jsonOut {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory: %s\n", cfg.Paths.CacheDir)
			fmt.Fprintf(out, "Records:   %d (%d cataloged)\n", view.Records, view.CatalogEntries)
			if view.CachingEnabled {
				fmt.Fprintf(out, "Size:      %s / %s\n",
					humanize.IBytes(uint64(view.TotalBytes)), humanize.IBytes(uint64(view.MaxBytes)))
			} else {
				fmt.Fprintf(out, "Size:      %s (caching disabled, max_mib = 0)\n",
					humanize.IBytes(uint64(view.TotalBytes)))
			}
			fmt.Fprintf(out, "Disk:      %s free (%.1f%%)\n",
				humanize.IBytes(view.FreeBytes), view.FreeRatio*100)
			const stampLayout = "2006-01-02 15:04"
			if !view.OldestAt.IsZero() {
				fmt.Fprintf(out, "Oldest:    %s\n", view.OldestAt.Local().Format(stampLayout))
				fmt.Fprintf(out, "Newest:    %s\n", view.NewestAt.Local().Format(stampLayout))
			}
			fmt.Fprintf(out, "Verify:    %s\n", yesNo(view.VerifySource))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit stats as JSON")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Enforce the cache budget and reconcile the catalog now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			store, q := buildStore(cfg, logger)
			out := cmd.OutOrStdout()

			swept, err := store.SweepTemp(0)
			if err != nil {
				return err
			}
			if swept > 0 {
				fmt.Fprintf(out, "Swept %d stale temp files\n", swept)
			}

			before, err := q.TotalBytes(cmd.Context())
			if err != nil {
				return err
			}
			if err := q.EvictOldest(cmd.Context()); err != nil {
				return err
			}
			q.MarkDirty()
			after, err := q.TotalBytes(cmd.Context())
			if err != nil {
				return err
			}
			if freed := before - after; freed > 0 {
				fmt.Fprintf(out, "Evicted %s of records\n", humanize.IBytes(uint64(freed)))
			} else {
				fmt.Fprintln(out, "No records evicted")
			}

			if cat := openCatalog(cmd, cfg); cat != nil {
				defer cat.Close()
				keys, err := store.Keys()
				if err != nil {
					return err
				}
				live := make(map[string]struct{}, len(keys))
				for _, key := range keys {
					live[key.String()] = struct{}{}
				}
				dropped, err := cat.Reconcile(cmd.Context(), live)
				if err != nil {
					return err
				}
				if dropped > 0 {
					fmt.Fprintf(out, "Dropped %d stale catalog rows\n", dropped)
				}
			}
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			store, q := buildStore(cfg, logger)

			keys, err := store.Keys()
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := store.Delete(key); err != nil {
					return err
				}
			}
			q.MarkDirty()
			if _, err := store.SweepTemp(0); err != nil {
				return err
			}

			if cat := openCatalog(cmd, cfg); cat != nil {
				defer cat.Close()
				if _, err := cat.Clear(cmd.Context()); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records\n", len(keys))
			return nil
		},
	}
}

func newCacheVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Decode every record and delete corrupt ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			store, _ := buildStore(cfg, logger)

			keys, err := store.Keys()
			if err != nil {
				return err
			}
			healthy, corrupt := 0, 0
			for _, key := range keys {
				_, _, err := store.Read(cmd.Context(), key)
				switch {
				case err == nil:
					healthy++
				case errors.Is(err, thumbcache.ErrCorrupt):
					corrupt++
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted corrupt record %s\n", key)
				default:
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Verified %d records: %d healthy, %d corrupt\n",
				len(keys), healthy, corrupt)
			if corrupt > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Corrupt records regenerate on their next access; run cache prune to reconcile the catalog")
			}
			return nil
		},
	}
}

// timeOrDash formats a timestamp for table cells, with a dash for zero.
func timeOrDash(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}
