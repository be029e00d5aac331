package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lightbox/internal/config"
	"lightbox/internal/generation"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate <path>...",
		Short: "Generate and cache thumbnails for videos",
		Long: "Generate thumbnails for each path. Files are fingerprinted and " +
			"skipped when a cached record already exists; directories are " +
			"walked depth-first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}

			lock := generation.NewBatchLock(cfg.Paths.CacheDir)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			store, _ := buildStore(cfg, logger)
			cat := openCatalog(cmd, cfg)
			if cat != nil {
				defer cat.Close()
			}

			opts := []generation.Option{
				generation.WithLogger(logger),
				generation.WithForce(force),
			}
			if cat != nil {
				opts = append(opts, generation.WithCatalog(cat))
			}
			gen := generation.New(cfg, store, newProducer(cfg, logger), opts...)

			var total generation.Summary
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				sum, err := gen.Path(cmd.Context(), path)
				total.Scanned += sum.Scanned
				total.Generated += sum.Generated
				total.Skipped += sum.Skipped
				total.Failed += sum.Failed
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, total)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, generated %d, skipped %d, failed %d\n",
				total.Scanned, total.Generated, total.Skipped, total.Failed)
			if total.Failed > 0 {
				return fmt.Errorf("generate: %d of %d videos failed", total.Failed, total.Scanned)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even when cached records exist")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the summary as JSON")
	return cmd
}
