package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/passbi/corridor_router/internal/coverage"
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/metrics"
	"github.com/passbi/corridor_router/internal/models"
)

// Reloader loads a bundle from a source and publishes the derived graph and
// coverage index. The graph is rebuilt only when the network hash changes.
type Reloader struct {
	source   Source
	graphs   *graph.Holder
	carriers *coverage.Manager
}

// NewReloader wires a source to the published graph and index
func NewReloader(source Source, graphs *graph.Holder, carriers *coverage.Manager) *Reloader {
	return &Reloader{source: source, graphs: graphs, carriers: carriers}
}

// Reload fetches the bundle once. The graph swap is synchronous; the index
// build is dispatched in the background and its result sent on the returned
// channel. changed reports whether a new graph was published.
func (r *Reloader) Reload(ctx context.Context) (changed bool, indexDone <-chan error, err error) {
	bundle, err := r.source.LoadBundle(ctx)
	if err != nil {
		metrics.DatasetReloads.WithLabelValues("error").Inc()
		return false, nil, fmt.Errorf("failed to load bundle: %w", err)
	}

	changed, err = r.publishGraph(bundle)
	if err != nil {
		metrics.DatasetReloads.WithLabelValues("error").Inc()
		return false, nil, err
	}

	if changed {
		metrics.DatasetReloads.WithLabelValues("changed").Inc()
	} else {
		metrics.DatasetReloads.WithLabelValues("unchanged").Inc()
	}

	return changed, r.carriers.EnsureAsync(bundle.Carriers, cityIDs(bundle)...), nil
}

// Run reloads on every tick until ctx is cancelled. A failed reload keeps the
// previously published state.
func (r *Reloader) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, _, err := r.Reload(ctx)
			if err != nil {
				log.Printf("Warning: dataset refresh failed: %v", err)
				continue
			}
			if changed {
				log.Println("✓ Dataset refreshed, new routing graph published")
			}
		}
	}
}

func (r *Reloader) publishGraph(bundle models.Bundle) (bool, error) {
	if current, ok := r.graphs.Get(); ok && current.Hash == graph.NetworkHash(bundle) {
		return false, nil
	}

	g, err := graph.Build(bundle)
	if err != nil {
		return false, fmt.Errorf("failed to build routing graph: %w", err)
	}
	r.graphs.Swap(g)
	return true, nil
}

func cityIDs(bundle models.Bundle) []string {
	ids := make([]string, 0, len(bundle.Cities))
	for _, c := range bundle.Cities {
		ids = append(ids, c.ID)
	}
	return ids
}
