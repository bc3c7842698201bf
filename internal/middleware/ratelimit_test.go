package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memoryCounter) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], nil
}

func newLimitedApp(counter Counter, perMinute int) *fiber.App {
	app := fiber.New()
	app.Use(RateLimitMiddleware(counter, perMinute))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("Rejects requests over the limit", func(t *testing.T) {
		app := newLimitedApp(&memoryCounter{}, 2)

		for i := 0; i < 2; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		}

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 429, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	})

	t.Run("Counter failure lets requests through", func(t *testing.T) {
		app := newLimitedApp(&memoryCounter{err: errors.New("redis down")}, 1)
		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}
	})

	t.Run("Zero limit disables", func(t *testing.T) {
		counter := &memoryCounter{}
		app := newLimitedApp(counter, 0)
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Empty(t, counter.counts)
	})
}
