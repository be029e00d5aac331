package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lightbox/internal/config"
	"lightbox/internal/generation"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and cache thumbnails for new videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			store, _ := buildStore(cfg, logger)
			cat := openCatalog(cmd, cfg)
			if cat != nil {
				defer cat.Close()
			}
			opts := []generation.Option{generation.WithLogger(logger)}
			if cat != nil {
				opts = append(opts, generation.WithCatalog(cat))
			}
			gen := generation.New(cfg, store, newProducer(cfg, logger), opts...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = generation.NewWatcher(gen, settle, logger).Run(runCtx, root)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "Quiet window before a changed file is processed")
	return cmd
}
