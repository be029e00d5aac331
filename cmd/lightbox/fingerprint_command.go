package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lightbox/internal/config"
	"lightbox/internal/fingerprint"
	"lightbox/internal/remote"
)

type fingerprintView struct {
	CacheKey string `json:"cache_key"`
	Source   string `json:"source"`
}

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "fingerprint <path|url>...",
		Short: "Print cache keys for videos without generating thumbnails",
		Long: "Derive the cache key for each path or URL. Remote sources are " +
			"read with HTTP range requests and require enabled = true in the " +
			"[remote] configuration section.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src := remote.NewHTTPSource(remote.Config{
				Enabled:   cfg.Remote.Enabled,
				Timeout:   time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
				UserAgent: cfg.Remote.UserAgent,
			})

			views := make([]fingerprintView, 0, len(args))
			for _, arg := range args {
				var key fingerprint.Key
				if isRemoteSource(arg) {
					key, err = fingerprint.FromURL(cmd.Context(), src, arg)
				} else {
					var path string
					path, err = config.ExpandPath(arg)
					if err == nil {
						key, err = fingerprint.FromFile(path)
					}
				}
				if err != nil {
					return err
				}
				views = append(views, fingerprintView{CacheKey: key.String(), Source: arg})
			}

			if jsonOut {
				return writeJSON(cmd, views)
			}
			for _, view := range views {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", view.CacheKey, view.Source)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit keys as JSON")
	return cmd
}

func isRemoteSource(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}
