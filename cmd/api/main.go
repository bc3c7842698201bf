package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/passbi/corridor_router/internal/api"
	"github.com/passbi/corridor_router/internal/cache"
	"github.com/passbi/corridor_router/internal/config"
	"github.com/passbi/corridor_router/internal/coverage"
	"github.com/passbi/corridor_router/internal/db"
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/middleware"
	"github.com/passbi/corridor_router/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting corridor router API server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Dataset source
	var source store.Source
	var dbCheck func(context.Context) error
	switch cfg.Dataset.Source {
	case "postgres":
		pool, err := db.GetDB()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("✓ Database connection established")

		source = store.NewPostgresSource(pool)
		dbCheck = func(ctx context.Context) error { return db.HealthCheck(ctx, pool) }
	default:
		source = store.FileSource{Path: cfg.Dataset.Path}
		log.Printf("✓ Using dataset file %s", cfg.Dataset.Path)
	}

	// Optional Redis: result cache and rate limiting degrade to off without it
	var resultCache api.ResultCache
	var limiter fiber.Handler
	if cfg.Server.CacheEnabled || cfg.Server.RateLimit > 0 {
		rdb, err := cache.GetClient()
		if err != nil {
			log.Printf("Warning: Redis unavailable, caching and rate limiting disabled: %v", err)
		} else {
			defer cache.Close()
			log.Println("✓ Redis connection established")
			if cfg.Server.CacheEnabled {
				resultCache = cache.NewStore(rdb, cache.LoadConfigFromEnv().TTL)
			}
			if cfg.Server.RateLimit > 0 {
				limiter = middleware.RateLimitMiddleware(middleware.NewRedisCounter(rdb), cfg.Server.RateLimit)
			}
		}
	}

	// Load the network graph, then build the carrier index in the background
	graphs := graph.NewHolder()
	carriers := coverage.NewManager(coverage.Options{MaxIndexedChain: cfg.Carrier.MaxIndexedChain})
	reloader := store.NewReloader(source, graphs, carriers)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Minute)
	if _, _, err := reloader.Reload(loadCtx); err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	cancelLoad()
	log.Println("✓ Routing graph loaded into memory, carrier index building")

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go reloader.Run(refreshCtx, cfg.Dataset.Refresh)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Corridor Router API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Routes
	handler := api.NewHandler(graphs, carriers, resultCache, dbCheck, cfg)
	if limiter != nil {
		handler.Register(app, limiter)
	} else {
		handler.Register(app)
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		stopRefresh()
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Route search: http://localhost%s/v1/routes?from=CITY&to=CITY&k=3", addr)
	log.Printf("🚌 Carrier search: http://localhost%s/v1/carriers?from=CITY&to=CITY", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
