package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightbox/internal/fingerprint"
)

type lsEntry struct {
	CacheKey      string    `json:"cache_key"`
	SourcePath    string    `json:"source_path"`
	SourceSize    int64     `json:"source_size"`
	SourceModTime time.Time `json:"source_mod_time"`
	ThumbCount    int       `json:"thumb_count"`
	RecordBytes   int64     `json:"record_bytes"`
	GeneratedAt   time.Time `json:"generated_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	OnDisk        bool      `json:"on_disk"`
}

func newLsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List cataloged videos and their cached records",
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

			cat := openCatalog(cmd, cfg)
			if cat == nil {
				return fmt.Errorf("ls requires the catalog database at %s", cfg.Paths.CatalogPath)
			}
			defer cat.Close()

			entries, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty; run lightbox generate first")
				return nil
			}

			views := make([]lsEntry, 0, len(entries))
			for _, entry := range entries {
				view := lsEntry{
					CacheKey:      entry.CacheKey,
					SourcePath:    entry.SourcePath,
					SourceSize:    entry.SourceSize,
					SourceModTime: entry.SourceModTime,
					ThumbCount:    entry.ThumbCount,
					RecordBytes:   entry.RecordBytes,
					GeneratedAt:   entry.GeneratedAt,
					UpdatedAt:     entry.UpdatedAt,
				}
				if key, parseErr := fingerprint.ParseKey(entry.CacheKey); parseErr == nil {
					view.OnDisk = store.Exists(key)
				}
				views = append(views, view)
			}

			if jsonOut {
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{
					shortKey(view.CacheKey),
					view.SourcePath,
					fmt.Sprintf("%d", view.ThumbCount),
					humanize.IBytes(uint64(view.RecordBytes)),
					timeOrDash(view.UpdatedAt),
					yesNo(view.OnDisk),
				})
			}
			tableOut := renderTable(cmd.OutOrStdout(),
				[]string{"Key", "Source", "Thumbs", "Size", "Updated", "On Disk"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), tableOut)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit entries as JSON")
	return cmd
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
