package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeys(t *testing.T) {
	t.Run("Route keys are deterministic", func(t *testing.T) {
		assert.Equal(t, RouteKey("h1", "A", "C", 3), RouteKey("h1", "A", "C", 3))
		assert.Regexp(t, `^route:[0-9a-f]{16}$`, RouteKey("h1", "A", "C", 3))
	})

	t.Run("Route keys change with every input", func(t *testing.T) {
		base := RouteKey("h1", "A", "C", 3)
		assert.NotEqual(t, base, RouteKey("h2", "A", "C", 3))
		assert.NotEqual(t, base, RouteKey("h1", "C", "A", 3))
		assert.NotEqual(t, base, RouteKey("h1", "A", "C", 4))
	})

	t.Run("Carrier keys", func(t *testing.T) {
		base := CarrierKey("h1", "A", "D", 3)
		assert.Regexp(t, `^carrier:[0-9a-f]{16}$`, base)
		assert.NotEqual(t, base, CarrierKey("h2", "A", "D", 3))
		assert.NotEqual(t, base, CarrierKey("h1", "A", "D", 2))
	})

	t.Run("Lock keys wrap the result key", func(t *testing.T) {
		assert.Equal(t, "lock:route:abc", LockKey("route:abc"))
	})
}
