package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightbox/internal/thumbcache"
)

type inspectThumb struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

type inspectView struct {
	CacheKey      string         `json:"cache_key"`
	RecordPath    string         `json:"record_path"`
	RecordBytes   int64          `json:"record_bytes"`
	SourceSize    int64          `json:"source_size"`
	SourceModTime time.Time      `json:"source_mod_time"`
	Thumbnails    []inspectThumb `json:"thumbnails"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <key-or-path>",
		Short: "Decode one cached record and describe its thumbnails",
		Args:  cobra.ExactArgs(1),
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

			key, err := resolveKey(args[0])
			if err != nil {
				return err
			}
			thumbs, meta, err := store.Read(cmd.Context(), key)
			if err != nil {
				if errors.Is(err, thumbcache.ErrCorrupt) {
					return fmt.Errorf("%w; the record was deleted and regenerates on next access", err)
				}
				return err
			}

			view := inspectView{
				CacheKey:      key.String(),
				RecordPath:    store.Path(key),
				SourceSize:    meta.Size,
				SourceModTime: meta.ModTime,
				Thumbnails:    make([]inspectThumb, 0, len(thumbs)),
			}
			if info, statErr := statRecord(store, key); statErr == nil {
				view.RecordBytes = info
			}
			for i, thumb := range thumbs {
				bounds := thumb.Image.Bounds()
				view.Thumbnails = append(view.Thumbnails, inspectThumb{
					Index:     i,
					Timestamp: thumb.RealTime,
					Width:     bounds.Dx(),
					Height:    bounds.Dy(),
				})
			}

			if jsonOut {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:     %s\n", view.CacheKey)
			fmt.Fprintf(out, "Record:  %s (%s)\n", view.RecordPath, humanize.IBytes(uint64(view.RecordBytes)))
			fmt.Fprintf(out, "Source:  %s, modified %s\n",
				humanize.IBytes(uint64(view.SourceSize)), timeOrDash(view.SourceModTime))
			fmt.Fprintf(out, "Thumbs:  %d\n", len(view.Thumbnails))
			if len(view.Thumbnails) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(view.Thumbnails))
			for _, thumb := range view.Thumbnails {
				rows = append(rows, []string{
					fmt.Sprintf("%d", thumb.Index),
					fmt.Sprintf("%.3fs", thumb.Timestamp),
					fmt.Sprintf("%dx%d", thumb.Width, thumb.Height),
				})
			}
			tableOut := renderTable(out,
				[]string{"#", "Timestamp", "Dimensions"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft},
			)
			fmt.Fprintln(out, tableOut)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit record details as JSON")
	return cmd
}
