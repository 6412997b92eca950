package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"csv_stream_backend/config"
)

func TestInitRedis_RejectsBadURL(t *testing.T) {
	cfg := config.Default()

	cfg.RedisURL = ""
	_, err := InitRedis(cfg)
	assert.ErrorContains(t, err, "empty redis url")

	cfg.RedisURL = "http://localhost:6379"
	_, err = InitRedis(cfg)
	assert.ErrorContains(t, err, "could not parse Redis URL")
}
