package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Logger(env string) fiber.Handler {
	return LoggerTo(env, os.Stdout)
}

func LoggerTo(env string, out io.Writer) fiber.Handler {
	if env == "prod" {
		return logger.New(logger.Config{
			Format:     `{"time":"${time}","ip":"${ip}","method":"${method}","path":"${path}","status":${status},"latency":"${latency}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "Local",
			Output:     out,
		})
	}
	// dev mode
	return logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Output:     out,
	})
}
