package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/corridor_router/internal/cache"
	"github.com/passbi/corridor_router/internal/config"
	"github.com/passbi/corridor_router/internal/coverage"
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/metrics"
	"github.com/passbi/corridor_router/internal/models"
	"github.com/passbi/corridor_router/internal/routing"
)

// ResultCache stores computed query results; cache.Store implements it
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	WaitForLock(ctx context.Context, key string, dst interface{}, maxWait time.Duration) (bool, error)
	HealthCheck(ctx context.Context) error
}

// Handler serves route and carrier queries over the current graph and index
type Handler struct {
	graphs   *graph.Holder
	carriers *coverage.Manager
	cache    ResultCache                 // nil disables result caching
	dbCheck  func(context.Context) error // nil when the dataset is not in Postgres
	cfg      config.Config
}

// NewHandler wires the handler dependencies. cache and dbCheck may be nil.
func NewHandler(graphs *graph.Holder, carriers *coverage.Manager, resultCache ResultCache, dbCheck func(context.Context) error, cfg config.Config) *Handler {
	return &Handler{
		graphs:   graphs,
		carriers: carriers,
		cache:    resultCache,
		dbCheck:  dbCheck,
		cfg:      cfg,
	}
}

// Register mounts the query endpoints under /v1 plus /health
func (h *Handler) Register(app *fiber.App, middlewares ...fiber.Handler) {
	app.Get("/health", h.Health)

	v1 := app.Group("/v1", middlewares...)
	v1.Get("/routes", h.RouteSearch)
	v1.Get("/carriers", h.CarrierSearch)
	v1.Get("/cities", h.Cities)
	v1.Get("/index/status", h.IndexStatus)
}

// RouteSearchResponse is the API response structure for route queries
type RouteSearchResponse struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Routes []RouteResult `json:"routes"`
}

// RouteResult represents a single itinerary option
type RouteResult struct {
	Transfers int              `json:"transfers"`
	Hops      int              `json:"hops"`
	Segments  []models.Segment `json:"segments"`
	Steps     []models.Step    `json:"steps"`
}

// CarrierSearchResponse is the API response structure for carrier queries
type CarrierSearchResponse struct {
	From      string                  `json:"from"`
	To        string                  `json:"to"`
	Exact     []models.CarrierInfo    `json:"exact"`
	Geozone   []models.CarrierInfo    `json:"geozone"`
	Composite []models.CompositeRoute `json:"composite"`
	Ranked    []models.RankedOption   `json:"ranked"`
}

// RouteSearch handles GET /v1/routes?from=&to=&k=
func (h *Handler) RouteSearch(c *fiber.Ctx) error {
	from, to, err := endpoints(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid_parameters", "message": err.Error()})
	}

	k, err := intParam(c, "k", h.cfg.Routing.DefaultK, 1, h.cfg.Routing.MaxK)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid_parameters", "message": err.Error()})
	}

	g, ok := h.graphs.Get()
	if !ok {
		c.Set("Retry-After", "5")
		return c.Status(503).JSON(fiber.Map{
			"error":   "graph_not_ready",
			"message": "the route network is still loading",
		})
	}

	start := time.Now()
	key := cache.RouteKey(g.Hash, from, to, k)
	resp, err := computeCached(c.UserContext(), h.cache, "route", key, func() (RouteSearchResponse, error) {
		itineraries, err := routing.FindRoutes(g, from, to, k)
		if err != nil {
			return RouteSearchResponse{}, err
		}
		resp := RouteSearchResponse{From: from, To: to, Routes: make([]RouteResult, 0, len(itineraries))}
		for _, it := range itineraries {
			resp.Routes = append(resp.Routes, RouteResult{
				Transfers: it.Transfers,
				Hops:      it.Hops,
				Segments:  it.Segments,
				Steps:     routing.BuildSteps(it.Segments),
			})
		}
		return resp, nil
	})
	metrics.QueryDuration.WithLabelValues("route").Observe(time.Since(start).Seconds())

	if errors.Is(err, routing.ErrUnknownCity) {
		metrics.RouteQueries.WithLabelValues("unknown_city").Inc()
		return c.Status(404).JSON(fiber.Map{"error": "unknown_city", "message": err.Error()})
	}
	if err != nil {
		metrics.RouteQueries.WithLabelValues("error").Inc()
		log.Printf("Route search %s -> %s failed: %v", from, to, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if len(resp.Routes) == 0 {
		metrics.RouteQueries.WithLabelValues("no_route").Inc()
	} else {
		metrics.RouteQueries.WithLabelValues("found").Inc()
	}
	return c.JSON(resp)
}

// CarrierSearch handles GET /v1/carriers?from=&to=&max_segments=
func (h *Handler) CarrierSearch(c *fiber.Ctx) error {
	from, to, err := endpoints(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid_parameters", "message": err.Error()})
	}

	maxSegments, err := intParam(c, "max_segments", h.cfg.Carrier.MaxSegments, 1, 10)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid_parameters", "message": err.Error()})
	}

	idx, err := h.carriers.Current()
	if errors.Is(err, coverage.ErrIndexNotReady) {
		metrics.CarrierQueries.WithLabelValues("not_ready").Inc()
		c.Set("Retry-After", "5")
		return c.Status(503).JSON(fiber.Map{
			"error":   "index_not_ready",
			"message": "the carrier index is still building",
		})
	}

	opts := coverage.SearchOptions{
		MaxSegments:     maxSegments,
		MaxPaths:        h.cfg.Carrier.MaxPaths,
		MaxCombinations: h.cfg.Carrier.MaxCombinations,
	}

	start := time.Now()
	key := cache.CarrierKey(idx.Hash, from, to, maxSegments)
	resp, err := computeCached(c.UserContext(), h.cache, "carrier", key, func() (CarrierSearchResponse, error) {
		result, err := coverage.Search(idx, from, to, opts)
		if err != nil {
			return CarrierSearchResponse{}, err
		}
		return CarrierSearchResponse{
			From:      from,
			To:        to,
			Exact:     result.Exact,
			Geozone:   result.Geozone,
			Composite: result.Composite,
			Ranked:    result.Ranked(),
		}, nil
	})
	metrics.QueryDuration.WithLabelValues("carrier").Observe(time.Since(start).Seconds())

	if errors.Is(err, coverage.ErrUnknownCity) {
		metrics.CarrierQueries.WithLabelValues("unknown_city").Inc()
		return c.Status(404).JSON(fiber.Map{"error": "unknown_city", "message": err.Error()})
	}
	if err != nil {
		metrics.CarrierQueries.WithLabelValues("error").Inc()
		log.Printf("Carrier search %s -> %s failed: %v", from, to, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if len(resp.Ranked) == 0 {
		metrics.CarrierQueries.WithLabelValues("no_route").Inc()
	} else {
		metrics.CarrierQueries.WithLabelValues("found").Inc()
	}
	return c.JSON(resp)
}

// CityInfo is a city with the lines serving it
type CityInfo struct {
	models.City
	Lines []string `json:"lines"`
}

// Cities handles GET /v1/cities
func (h *Handler) Cities(c *fiber.Ctx) error {
	g, ok := h.graphs.Get()
	if !ok {
		c.Set("Retry-After", "5")
		return c.Status(503).JSON(fiber.Map{"error": "graph_not_ready"})
	}

	cities := make([]CityInfo, 0, len(g.Cities()))
	for _, city := range g.Cities() {
		lines := g.LinesAt(city.ID)
		if lines == nil {
			lines = []string{}
		}
		cities = append(cities, CityInfo{City: city, Lines: lines})
	}
	return c.JSON(fiber.Map{
		"graph_id": g.ID,
		"hash":     g.Hash,
		"cities":   cities,
	})
}

// IndexStatus handles GET /v1/index/status
func (h *Handler) IndexStatus(c *fiber.Ctx) error {
	return c.JSON(h.carriers.Status())
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()
	checks := fiber.Map{}
	healthy := true

	if g, ok := h.graphs.Get(); ok {
		checks["graph"] = fmt.Sprintf("ok (%d nodes, %d edges)", g.NodeCount(), g.EdgeCount())
	} else {
		checks["graph"] = "loading"
		healthy = false
	}

	status := h.carriers.Status()
	switch {
	case status.Ready:
		checks["carrier_index"] = "ok"
	case status.Building:
		checks["carrier_index"] = "building"
	default:
		checks["carrier_index"] = "not ready"
	}

	if h.dbCheck != nil {
		if err := h.dbCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	// Redis failures degrade caching only
	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		return c.Status(503).JSON(fiber.Map{"status": "unhealthy", "checks": checks})
	}
	return c.JSON(fiber.Map{"status": "healthy", "checks": checks})
}

// computeCached serves a result from the cache or computes it under a lock.
// Cache errors are logged and the result is computed anyway.
func computeCached[T any](ctx context.Context, rc ResultCache, kind, key string, compute func() (T, error)) (T, error) {
	if rc == nil {
		return compute()
	}

	var cached T
	if hit, err := rc.GetJSON(ctx, key, &cached); err != nil {
		metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
		log.Printf("Cache read failed: %v", err)
	} else if hit {
		metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
		return cached, nil
	} else {
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
	}

	acquired, err := rc.AcquireLock(ctx, key, 5*time.Second)
	if err != nil {
		log.Printf("Failed to acquire lock: %v", err)
	} else if !acquired {
		// Another request is computing this result, wait for it
		if hit, err := rc.WaitForLock(ctx, key, &cached, 3*time.Second); err == nil && hit {
			return cached, nil
		}
	}

	defer func() {
		if acquired {
			if err := rc.ReleaseLock(ctx, key); err != nil {
				log.Printf("Failed to release lock: %v", err)
			}
		}
	}()

	result, err := compute()
	if err != nil {
		return result, err
	}

	if err := rc.SetJSON(ctx, key, result); err != nil {
		log.Printf("Failed to cache %s result: %v", kind, err)
	}
	return result, nil
}

// endpoints reads the from and to city ids
func endpoints(c *fiber.Ctx) (string, string, error) {
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		return "", "", fmt.Errorf("missing required parameters: from and to")
	}
	return from, to, nil
}

// intParam parses an optional bounded integer query parameter
func intParam(c *fiber.Ctx, name string, def, lo, hi int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s (must be between %d and %d)", name, lo, hi)
	}
	return v, nil
}
