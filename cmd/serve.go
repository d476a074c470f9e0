package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/cache"
	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/query"
	"github.com/macromap/econsync/internal/registry"
	"github.com/macromap/econsync/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		c := cache.New(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
		s := server.New(query.New(pool), registry.New(pool), ingest.NewLedger(pool), c)
		s.AllowedOrigins = cfg.Server.AllowedOrigins

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: s.Router(),
		}

		go shutdownOnCancel(ctx, srv, 10*time.Second)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// shutdownOnCancel drains the server once ctx is canceled. The signal context
// is already dead at that point, so the drain gets its own deadline.
func shutdownOnCancel(ctx context.Context, srv *http.Server, grace time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	shutCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}
