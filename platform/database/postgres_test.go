package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"csv_stream_backend/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "db"
	cfg.User = "csv"
	cfg.Password = "secret"
	cfg.DBName = "jobs"
	cfg.Port = "5432"
	assert.Equal(t,
		"host=db user=csv password=secret dbname=jobs port=5432 sslmode=prefer TimeZone=UTC",
		DSN(cfg))
}
