package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/linkchecker-service/internal/delivery/http/handler"
	"github.com/user/linkchecker-service/internal/delivery/http/middleware"
	"github.com/user/linkchecker-service/internal/delivery/http/router"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the HTTP API and the generation job executor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (default 8080)")
	bindLocal(opts.v, cmd, map[string]string{"server.port": "port"})
	return cmd
}

func serve(ctx context.Context, a *app) error {
	h := handler.NewHandler(a.feed, a.fixer, a.jobs, a.content, a.queue, a.logger)
	server := &http.Server{
		Addr: ":" + a.cfg.Server.Port,
		Handler: router.New(h, router.Options{
			Authorizer: middleware.NewGroupAuthorizer(a.cfg.Auth),
			Metrics:    a.metrics,
			Gatherer:   a.registry,
			Logger:     a.logger,
			Timeout:    a.cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	executorDone := make(chan struct{})
	go func() {
		defer close(executorDone)
		a.jobs.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting server", zap.String("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Could not listen on port", zap.String("port", a.cfg.Server.Port), zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", zap.Error(err))
	}
	// A running generation is allowed to finish.
	<-executorDone
	a.logger.Info("server exiting")
	return nil
}
