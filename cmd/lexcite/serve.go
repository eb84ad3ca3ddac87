package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/lexcite/internal/adapters/clock"
	httpadapter "github.com/PabloGalante/lexcite/internal/adapters/http"
	memstore "github.com/PabloGalante/lexcite/internal/adapters/storage/memory"
	"github.com/PabloGalante/lexcite/internal/app/conversation"
	"github.com/PabloGalante/lexcite/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			c, matcher, err := loadMatcher(cfg)
			if err != nil {
				return err
			}

			log := observability.Logger()
			if cfg.CorpusFile == "" {
				log.Info("using built-in corpus", "documents", len(c.Documents))
			} else {
				log.Info("using corpus file", "path", cfg.CorpusFile, "documents", len(c.Documents))
			}

			// Sessions live in memory only.
			svc := conversation.NewService(c, matcher, memstore.NewSessionStore(), memstore.NewMessageStore(), conversation.Config{
				Scheduler: clock.Real{},
				Delay:     cfg.ResponseDelay,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           httpadapter.NewServer(svc),
				ReadHeaderTimeout: 10 * time.Second,
				// event streams end when the process is told to stop
				BaseContext: func(net.Listener) context.Context { return ctx },
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("lexcite API listening", "addr", srv.Addr, "response_delay", cfg.ResponseDelay.String())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
