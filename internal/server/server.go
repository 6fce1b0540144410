package server

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/batch"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/config"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/db"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/report"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/stream"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/summary"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Reports   *report.Store
	Batches   *batch.Coordinator
	Summaries *summary.Service
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimitMB << 20,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	var q db.Querier
	if pool != nil {
		q = pool
	}

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        pool,
		Redis:     redisClient,
		Stream:    stream.NewHub(redisClient),
		Reports:   report.NewStore(cfg.ReportDir),
		Summaries: summary.NewService(q),
	}
	if err := s.Reports.Purge(); err != nil {
		log.Printf("report dir cleanup failed: %v", err)
	}

	opts := batch.Options{
		CleanupDelay:  cfg.CleanupDelay,
		MaxConcurrent: int64(cfg.MaxConcurrentBatches),
		Publisher:     s.Stream,
	}
	if s.Summaries.Enabled() {
		opts.Archiver = s.Summaries
	}
	renderer := report.NewRenderer(cfg.VehicleNumber, cfg.LogoPath)
	s.Batches = batch.NewCoordinator(batch.NewRegistry(), renderer, s.Reports, opts)

	registerRoutes(s, renderer)
	return s
}

// Close stops background work owned by the server. The fiber app is shut
// down separately by the caller.
func (s *Server) Close(ctx context.Context) error {
	err := s.Batches.Shutdown(ctx)
	if cerr := s.Stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func registerRoutes(s *Server, renderer trip.Renderer) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tabular.RegisterRoutes(s.App)
	trip.RegisterRoutes(s.App, trip.NewService(renderer))
	batch.RegisterRoutes(s.App, s.Batches)
	report.RegisterRoutes(s.App, s.Reports)
	summary.RegisterRoutes(s.App, s.Summaries)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)

	registerFrontend(s.App, s.Cfg.FrontendDir)
}

// registerFrontend serves the single page app build when one exists and
// falls back to a JSON banner otherwise.
func registerFrontend(app *fiber.App, dir string) {
	index := filepath.Join(dir, "index.html")
	if dir == "" || !fileExists(index) {
		app.Get("/", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"message": "Trip Analytics API is running"})
		})
		return
	}

	app.Static("/", dir)
	app.Get("/*", func(c *fiber.Ctx) error {
		return c.SendFile(index)
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
