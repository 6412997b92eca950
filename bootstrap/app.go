package bootstrap

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	Cfg            *config.Config
	Infrastructure *Infrastructure
	Repositories   *Repositories
	Services       *Services
	GrpcServices   *GrpcServices
	Handlers       *Handlers
	Fiber          *fiber.App
}

// NewProcessorApp starts the gRPC CSV processor on cfg.GrpcPort.
func NewProcessorApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Cfg: cfg}
	infra, err := NewProcessorInfrastructure(ctx, cfg)
	if err != nil {
		logging.Logger.Error("fail NewProcessorInfrastructure", "error", err)
		return nil, err
	}
	app.Infrastructure = infra

	grpcServices, err := NewGrpcServices(cfg, infra)
	if err != nil {
		logging.Logger.Error("fail NewGrpcServices", "error", err)
		_ = infra.Shutdown()
		return nil, err
	}
	app.GrpcServices = grpcServices
	return app, nil
}

// NewGatewayApp wires the HTTP gateway. Nothing listens until Listen.
func NewGatewayApp(ctx context.Context, cfg *config.Config, dialOpts ...grpc.DialOption) (*App, error) {
	app := &App{Cfg: cfg}
	infra, err := NewGatewayInfrastructure(ctx, cfg, dialOpts...)
	if err != nil {
		logging.Logger.Error("fail NewGatewayInfrastructure", "error", err)
		return nil, err
	}
	app.Infrastructure = infra

	app.Repositories = NewRepositories(cfg, infra)
	app.Services = NewServices(cfg, app.Repositories, infra)
	app.Handlers = NewHandlers(cfg, app.Services, infra)
	app.Fiber = NewFiberApp(cfg, app.Handlers)
	return app, nil
}

func (a *App) Listen() error {
	addr := net.JoinHostPort(a.Cfg.GatewayHost, a.Cfg.GatewayPort)
	logging.Logger.Info("gateway listening", "addr", addr, "processor", a.Cfg.GrpcServerAddr)
	return a.Fiber.Listen(addr)
}

// Shutdown stops accepting requests, lets running jobs finish and then
// releases the infrastructure.
func (a *App) Shutdown() error {
	if a == nil {
		return nil
	}
	var errList []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithTimeout(shutdownTimeout); err != nil {
			errList = append(errList, err)
		}
	}
	if a.Services != nil {
		a.Services.JobService.Wait()
	}
	if a.GrpcServices != nil {
		if err := a.GrpcServices.Shutdown(); err != nil {
			errList = append(errList, err)
		}
	}
	if a.Infrastructure != nil {
		if err := a.Infrastructure.Shutdown(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
