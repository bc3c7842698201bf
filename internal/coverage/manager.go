package coverage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/passbi/corridor_router/internal/metrics"
	"github.com/passbi/corridor_router/internal/models"
	"golang.org/x/sync/singleflight"
)

// Manager owns the published coverage index. Builds are gated by content
// hash, deduplicated with singleflight and published atomically, so queries
// see either no index or a complete one.
type Manager struct {
	opts    Options
	current atomic.Pointer[Index]
	flight  singleflight.Group

	mu       sync.Mutex
	wanted   string // hash of the most recently requested dataset
	building int
	lastErr  error
}

// Status is a snapshot of the manager state
type Status struct {
	Ready     bool      `json:"ready"`
	Building  bool      `json:"building"`
	BuildID   string    `json:"build_id,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
	Routes    int       `json:"routes"`
	Carriers  int       `json:"carriers"`
	LastError string    `json:"last_error,omitempty"`
}

// NewManager creates a manager with no index
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Current returns the published index or ErrIndexNotReady
func (m *Manager) Current() (*Index, error) {
	idx := m.current.Load()
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	return idx, nil
}

// Ensure makes sure the published index matches the carriers, building it if
// the content hash changed. Concurrent calls for the same data share one build.
// A build that finishes after a newer dataset was requested is not published.
// knownCities are accepted as query endpoints even when no carrier serves them.
func (m *Manager) Ensure(ctx context.Context, carriers []models.Carrier, knownCities ...string) (*Index, error) {
	hash := buildKey(carriers, knownCities)

	// the latest request wins even when it matches the published index
	m.mu.Lock()
	m.wanted = hash
	m.mu.Unlock()

	if idx := m.current.Load(); idx != nil && idx.key == hash {
		metrics.IndexBuilds.WithLabelValues("skipped").Inc()
		return idx, nil
	}

	ch := m.flight.DoChan(hash, func() (interface{}, error) {
		return m.build(hash, carriers, knownCities)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnsureAsync dispatches Ensure in the background. The returned channel
// receives the build result once.
func (m *Manager) EnsureAsync(carriers []models.Carrier, knownCities ...string) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := m.Ensure(context.Background(), carriers, knownCities...)
		if err != nil {
			log.Printf("Warning: carrier index build failed: %v", err)
		}
		done <- err
	}()
	return done
}

// Status reports whether an index is ready and what it holds
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := Status{Building: m.building > 0}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	if idx := m.current.Load(); idx != nil {
		s.Ready = true
		s.BuildID = idx.ID
		s.Hash = idx.Hash
		s.BuiltAt = idx.BuiltAt
		s.Routes = len(idx.catalog)
		s.Carriers = len(idx.carriers)
	}
	return s
}

func (m *Manager) build(hash string, carriers []models.Carrier, knownCities []string) (*Index, error) {
	// another caller may have published it while we waited
	if idx := m.current.Load(); idx != nil && idx.key == hash {
		return idx, nil
	}

	m.mu.Lock()
	m.building++
	m.mu.Unlock()

	opts := m.opts
	opts.KnownCities = append(slices.Clone(opts.KnownCities), knownCities...)

	start := time.Now()
	idx, err := BuildIndex(carriers, opts)
	metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.building--

	if err != nil {
		m.lastErr = err
		metrics.IndexBuilds.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to build carrier index: %w", err)
	}

	idx.key = hash
	m.lastErr = nil
	metrics.IndexBuilds.WithLabelValues("success").Inc()
	if m.wanted == hash {
		m.current.Store(idx)
	} else {
		log.Printf("Carrier index %.12s superseded by %.12s, not published", hash, m.wanted)
	}
	return idx, nil
}

// buildKey identifies a build input: the carrier content plus the declared cities
func buildKey(carriers []models.Carrier, knownCities []string) string {
	key := ContentHash(carriers)
	if len(knownCities) == 0 {
		return key
	}
	cities := slices.Clone(knownCities)
	slices.Sort(cities)
	sum := sha256.Sum256([]byte(strings.Join(cities, "\x1f")))
	return key + ":" + hex.EncodeToString(sum[:8])
}
