package bootstrap

import (
	"context"
	"errors"

	"google.golang.org/grpc"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/cache"
	"csv_stream_backend/platform/database"
	"csv_stream_backend/platform/events"
	"csv_stream_backend/platform/grpc/clients"
	"csv_stream_backend/platform/redis"
	"csv_stream_backend/platform/storage"
	"csv_stream_backend/platform/telemetry"
)

const serviceName = "csv-stream-processor"

type Infrastructure struct {
	// optional
	DB      *database.DB
	Redis   *redis.Service
	Storage storage.Backend

	Cache          *cache.Service
	EventPublisher events.Publisher
	GrpcClients    *clients.GrpcClients

	shutdownTelemetry func(context.Context) error
}

// NewProcessorInfrastructure prepares what the gRPC processor needs: result
// storage and tracing. A storage backend that fails to initialize falls back
// to writing into RESULTS_DIR.
func NewProcessorInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{}
	if err := infra.initTelemetry(ctx, cfg); err != nil {
		return nil, err
	}

	backend, err := storage.InitStorageService(ctx, cfg)
	if err != nil {
		logging.Logger.Error("fail Initializing storage, falling back to local results", "type", cfg.StorageType, "error", err)
		backend = nil
	}
	infra.Storage = backend
	if backend != nil {
		logging.Logger.Info("initialized storage backend", "type", backend.Kind())
	}
	return infra, nil
}

// NewGatewayInfrastructure prepares the job registry, the event bus and the
// processor client. Redis and Postgres are used when configured; without
// them jobs live in process memory only.
func NewGatewayInfrastructure(ctx context.Context, cfg *config.Config, dialOpts ...grpc.DialOption) (*Infrastructure, error) {
	infra := &Infrastructure{}
	if err := infra.initTelemetry(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		redisService, err := redis.InitRedis(cfg)
		if err != nil {
			logging.Logger.Error("fail Initializing Redis, using in-process job store", "error", err)
		} else {
			infra.Redis = redisService
		}
	}

	if cfg.DatabaseEnabled() {
		db, err := database.InitPostgres(cfg)
		if err != nil {
			_ = infra.Shutdown()
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			_ = infra.Shutdown()
			return nil, err
		}
		infra.DB = db
	}

	// the gateway resolves download URLs against the same backend
	if cfg.UseExternalStorage() {
		backend, err := storage.InitStorageService(ctx, cfg)
		if err != nil {
			logging.Logger.Error("fail Initializing storage, serving local results", "error", err)
		} else {
			infra.Storage = backend
		}
	}

	infra.Cache = cache.NewCacheService(cache.InitL1Cache(cfg.JobTTL), infra.Redis)
	if infra.Redis != nil {
		infra.EventPublisher = events.NewEventPublisher(infra.Redis.Rdb)
	} else {
		infra.EventPublisher = events.NewLocalBroker()
	}

	grpcClients, err := clients.NewGrpcClients(cfg, dialOpts...)
	if err != nil {
		_ = infra.Shutdown()
		return nil, err
	}
	infra.GrpcClients = grpcClients
	return infra, nil
}

func (infra *Infrastructure) initTelemetry(ctx context.Context, cfg *config.Config) error {
	tcfg := telemetry.DefaultConfig(serviceName)
	tcfg.Endpoint = cfg.OTLPEndpoint
	tcfg.Environment = cfg.AppEnv
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logging.Logger.Error("fail Initializing telemetry", "error", err)
		return err
	}
	infra.shutdownTelemetry = shutdown
	return nil
}

func (infra *Infrastructure) Shutdown() error {
	var errList []error
	if infra.GrpcClients != nil {
		if err := infra.GrpcClients.Close(); err != nil {
			logging.Logger.Error("fail closing grpc", "error", err)
			errList = append(errList, err)
		}
	}
	if infra.DB != nil {
		if err := infra.DB.Close(); err != nil {
			logging.Logger.Error("fail closing database", "error", err)
			errList = append(errList, err)
		}
	}
	if infra.Redis != nil {
		if err := infra.Redis.Close(); err != nil {
			logging.Logger.Error("fail closing redis", "error", err)
			errList = append(errList, err)
		}
	}
	if infra.shutdownTelemetry != nil {
		if err := infra.shutdownTelemetry(context.Background()); err != nil {
			logging.Logger.Error("fail flushing telemetry", "error", err)
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
