package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peopleapi/docs"
	"peopleapi/internal/config"
	"peopleapi/internal/database"
	"peopleapi/internal/database/migration"
	handlers "peopleapi/internal/http/handler"
	"peopleapi/internal/http/middleware"
	"peopleapi/internal/logging"
	"peopleapi/internal/otel"
	"peopleapi/internal/repository"
	"peopleapi/internal/repository/memory"
	"peopleapi/internal/repository/mongodb"
	"peopleapi/internal/repository/postgres"
	"peopleapi/internal/service"
	"peopleapi/internal/storage"
)

// @title People API
// @version 1.0
// @description CRUD over Person records backed by MongoDB, PostgreSQL or memory.
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	log := logging.New(os.Stderr, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Error("tracing_init_failed", err, nil)
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	repo, closeStore, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Error("store_init_failed", err, map[string]any{"backend": cfg.StoreBackend})
		return err
	}
	defer closeStore()

	var objStore storage.Storage
	if cfg.MinIO.Enabled() {
		objStore, err = storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			log.Error("object_storage_init_failed", err, nil)
			return err
		}
	}

	svc := service.NewPersonService(repo, objStore, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := newServer(repo, svc, reg, logging.New(os.Stdout, loc))
	if err != nil {
		log.Error("server_init_failed", err, nil)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started", map[string]any{
			"addr":          ":" + cfg.Port,
			"store_backend": cfg.StoreBackend,
			"export":        objStore != nil,
		})
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		log.Error("server_failed", err, nil)
		return err
	case <-ctx.Done():
	}

	log.Info("server_stopping", nil)
	return app.ShutdownWithTimeout(10 * time.Second)
}

// openRepository builds the configured PersonRepository and returns a
// function releasing its connections.
func openRepository(ctx context.Context, cfg *config.AppConfig, log *logging.Logger) (repository.PersonRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		return mongodb.NewPersonMongo(database.MongoCollection(client, cfg.Mongo)), closeFn, nil

	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.NewPersonPostgres(db), closeQuietly(db), nil

	case config.BackendMemory:
		return memory.NewPersonMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (want %s, %s or %s)",
			cfg.StoreBackend, config.BackendMongo, config.BackendPostgres, config.BackendMemory)
	}
}

func closeQuietly(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

// newServer assembles the Fiber app: middleware, people routes, metrics and Swagger UI.
// Request logs go to accessLog.
func newServer(store handlers.Pinger, svc service.PersonService, reg *prometheus.Registry, accessLog *logging.Logger) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == middleware.MetricsPath
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(accessLog))
	app.Use(promMiddleware.Handler())

	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, store, svc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}
