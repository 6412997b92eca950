package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"csv_stream_backend/bootstrap"
	"csv_stream_backend/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC CSV processor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.NewProcessorApp(ctx, cfg)
		if err != nil {
			return err
		}
		<-ctx.Done()
		logging.Logger.Info("shutting down processor")
		return app.Shutdown()
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP upload gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.NewGatewayApp(ctx, cfg)
		if err != nil {
			return err
		}
		return runGateway(ctx, app)
	},
}

var standaloneCmd = &cobra.Command{
	Use:   "standalone",
	Short: "Run the processor and the gateway in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		processor, err := bootstrap.NewProcessorApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := processor.Shutdown(); err != nil {
				logging.Logger.Error("fail stopping processor", "error", err)
			}
		}()

		gwCfg := *cfg
		gwCfg.GrpcServerAddr = net.JoinHostPort("localhost", cfg.GrpcPort)
		gateway, err := bootstrap.NewGatewayApp(ctx, &gwCfg)
		if err != nil {
			return err
		}
		return runGateway(ctx, gateway)
	},
}

// runGateway serves until ctx ends or the listener fails, then shuts down.
func runGateway(ctx context.Context, app *bootstrap.App) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Listen)
	g.Go(func() error {
		<-gctx.Done()
		logging.Logger.Info("shutting down gateway")
		return app.Shutdown()
	})
	return g.Wait()
}
