package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	// processor
	ChunkSize        int           `yaml:"chunk_size"`
	GrpcPort         string        `yaml:"grpc_port"`
	GrpcServerAddr   string        `yaml:"grpc_server_address"`
	GrpcMaxWorkers   int           `yaml:"grpc_max_workers"`
	UpdateInterval   time.Duration `yaml:"update_interval"`
	GrpcCompression  string        `yaml:"grpc_compression"` // "" or "zstd"
	MaxLineBytes     int           `yaml:"max_line_bytes"`
	ResultsDir       string        `yaml:"results_dir"`
	ProcessorTimeout time.Duration `yaml:"processor_timeout"`

	// S3/MinIO
	StorageType         string        `yaml:"storage_type"` // "", "local", "minio" or "s3"
	BucketEndpoint      string        `yaml:"bucket_endpoint"`
	BucketAccessID      string        `yaml:"bucket_access_id"`
	BucketAccessKey     string        `yaml:"bucket_access_key"`
	BucketName          string        `yaml:"bucket_name"`
	BucketRegion        string        `yaml:"bucket_region"`
	UseSSL              bool          `yaml:"bucket_use_ssl"` // MinIO: false, S3: true
	BucketPublicBaseURL string        `yaml:"bucket_public_base_url"`
	PresignExpiry       time.Duration `yaml:"presign_expiry"`

	// gateway
	GatewayHost    string        `yaml:"gateway_host"`
	GatewayPort    string        `yaml:"gateway_port"`
	GatewayMaxJobs int64         `yaml:"gateway_max_jobs"`
	MaxUploadSize  int64         `yaml:"max_upload_size"`
	APIKey         string        `yaml:"api_key"`
	RequireAPIKey  bool          `yaml:"require_api_key"`
	AllowOrigins   string        `yaml:"allow_origins"`
	JobTTL         time.Duration `yaml:"job_ttl"`

	// Redis
	RedisURL string `yaml:"redis_url"`

	// Postgres
	Host     string `yaml:"pg_host"`
	User     string `yaml:"pg_user"`
	Password string `yaml:"pg_password"`
	DBName   string `yaml:"pg_db"`
	Port     string `yaml:"pg_port"`

	// telemetry
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func Default() *Config {
	return &Config{
		AppEnv:           "dev",
		LogLevel:         "info",
		ChunkSize:        1024 * 1024,
		GrpcPort:         "50051",
		GrpcServerAddr:   "localhost:50051",
		GrpcMaxWorkers:   20,
		UpdateInterval:   time.Second,
		MaxLineBytes:     4 * 1024 * 1024,
		ResultsDir:       "results",
		ProcessorTimeout: time.Hour,
		BucketRegion:     "us-east-1",
		PresignExpiry:    time.Hour,
		GatewayHost:      "0.0.0.0",
		GatewayPort:      "8000",
		GatewayMaxJobs:   5,
		MaxUploadSize:    2 * 1024 * 1024 * 1024,
		RequireAPIKey:    true,
		AllowOrigins:     "*",
		JobTTL:           24 * time.Hour,
	}
}

// LoadConfig applies defaults, then the optional CONFIG_FILE yaml, then the environment.
func LoadConfig() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.GrpcPort = getEnv("GRPC_PORT", c.GrpcPort)
	c.GrpcServerAddr = getEnv("GRPC_SERVER_ADDRESS", c.GrpcServerAddr)
	c.GrpcMaxWorkers = getEnvInt("GRPC_MAX_WORKERS", c.GrpcMaxWorkers)
	c.UpdateInterval = getEnvSeconds("GRPC_UPDATE_INTERVAL", c.UpdateInterval)
	c.GrpcCompression = getEnv("GRPC_COMPRESSION", c.GrpcCompression)
	c.MaxLineBytes = getEnvInt("MAX_LINE_BYTES", c.MaxLineBytes)
	c.ResultsDir = getEnv("RESULTS_DIR", c.ResultsDir)
	c.ProcessorTimeout = getEnvDuration("PROCESSOR_TIMEOUT", c.ProcessorTimeout)

	c.StorageType = getEnv("STORAGE_TYPE", c.StorageType)
	c.BucketEndpoint = getEnv("BUCKET_ENDPOINT", c.BucketEndpoint)
	c.BucketAccessID = getEnv("BUCKET_ACCESS_ID", c.BucketAccessID)
	c.BucketAccessKey = getEnv("BUCKET_ACCESS_KEY", c.BucketAccessKey)
	c.BucketName = getEnv("BUCKET_NAME", c.BucketName)
	c.BucketRegion = getEnv("BUCKET_REGION", c.BucketRegion)
	c.UseSSL = getEnvBool("BUCKET_USE_SSL", c.UseSSL)
	c.BucketPublicBaseURL = getEnv("BUCKET_PUBLIC_BASE_URL", c.BucketPublicBaseURL)
	c.PresignExpiry = getEnvDuration("PRESIGN_EXPIRY", c.PresignExpiry)

	c.GatewayHost = getEnv("GATEWAY_HOST", c.GatewayHost)
	c.GatewayPort = getEnv("GATEWAY_PORT", c.GatewayPort)
	c.GatewayMaxJobs = int64(getEnvInt("GATEWAY_MAX_JOBS", int(c.GatewayMaxJobs)))
	c.MaxUploadSize = int64(getEnvInt("MAX_UPLOAD_SIZE", int(c.MaxUploadSize)))
	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.RequireAPIKey = getEnvBool("REQUIRE_API_KEY", c.RequireAPIKey)
	c.AllowOrigins = getEnv("ALLOWORIGINS", c.AllowOrigins)
	c.JobTTL = getEnvDuration("JOB_TTL", c.JobTTL)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.Host = getEnv("PG_HOST", c.Host)
	c.User = getEnv("PG_USER", c.User)
	c.Password = getEnv("PG_PASSWORD", c.Password)
	c.DBName = getEnv("PG_DB", c.DBName)
	c.Port = getEnv("PG_PORT", c.Port)

	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive, got %s", c.UpdateInterval)
	}
	if c.GrpcMaxWorkers <= 0 {
		return fmt.Errorf("grpc max workers must be positive, got %d", c.GrpcMaxWorkers)
	}
	if c.GatewayMaxJobs <= 0 {
		return fmt.Errorf("gateway max jobs must be positive, got %d", c.GatewayMaxJobs)
	}
	switch c.StorageType {
	case "", "local", "minio", "s3":
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	switch c.GrpcCompression {
	case "", "zstd":
	default:
		return fmt.Errorf("unknown grpc compression %q", c.GrpcCompression)
	}
	return nil
}

// UseExternalStorage reports whether finished results go through a storage backend.
func (c *Config) UseExternalStorage() bool {
	return c.StorageType != ""
}

// DatabaseEnabled reports whether a Postgres job archive is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Host != "" && c.DBName != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvSeconds reads a float number of seconds such as "0.5".
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}
