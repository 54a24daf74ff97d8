package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fathima-sithara/image-service/internal/metrics"
	"github.com/fathima-sithara/image-service/internal/middleware"
	"github.com/fathima-sithara/image-service/internal/utils"
)

type AppConfig struct {
	// BodyLimit must leave room for several uploads plus multipart framing.
	BodyLimit int
	Gatherer  prometheus.Gatherer
}

// NewApp builds the fiber app with the ambient routes; image routes are
// added with Handler.Register.
func NewApp(cfg AppConfig, log *zap.Logger) *fiber.App {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 4 * utils.DefaultMaxUploadBytes
	}
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return utils.JSONError(c, code, err.Error())
		},
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(cfg.Gatherer)))
	return app
}
