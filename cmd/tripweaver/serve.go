package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/config"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				plannerModule(*configPath),
				fx.Provide(server.New),
				fx.Invoke(startServer),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, srv *server.Server, planner *tripweaver.Planner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				log.Printf("Server starting (address: %s)", cfg.Server.Address)
				if err := srv.ListenAndServe(ctx, cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("Server stopped (error: %v)", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			if ids, err := planner.PendingCheckpoints(ctx); err == nil && len(ids) > 0 {
				log.Printf("Runs waiting at the approval checkpoint (count: %d, run_ids: %v)", len(ids), ids)
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			log.Printf("Server stopped")
			return nil
		},
	})
}
