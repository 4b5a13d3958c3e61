package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"venuerag/internal/knowledgebase"
	"venuerag/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := a.service()
			if err != nil {
				return err
			}
			overview, err := svc.Reload(ctx)
			if err != nil {
				return fmt.Errorf("load knowledge base: %w", err)
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			a.logger.Info("serving", zap.String("addr", addr), zap.Stringer("corpus", overview))

			if watch || a.cfg.KnowledgeBase.Watch {
				go func() {
					if err := svc.Watch(ctx, knowledgebase.DefaultDebounce); err != nil {
						a.logger.Warn("knowledge base watcher stopped", zap.Error(err))
					}
				}()
			}

			srv := server.New(svc, a.logger, server.WithAllowedOrigins(a.cfg.Server.AllowedOrigins...))
			err = srv.ListenAndServe(ctx, addr)
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the knowledge base when its record files change")
	return cmd
}
