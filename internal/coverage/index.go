package coverage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/corridor_router/internal/models"
)

// DefaultMaxIndexedChain is the longest variant expanded into the subpath index
const DefaultMaxIndexedChain = 64

// RouteID is the arena index of a deduplicated route in the catalog
type RouteID int32

// CarrierID is the arena index of a carrier
type CarrierID int32

// Options configures index construction
type Options struct {
	// MaxIndexedChain caps the variant length expanded into the O(n²) subpath
	// index. Longer variants are scanned on demand by subpath lookups.
	MaxIndexedChain int

	// KnownCities are valid query endpoints even when no carrier touches them
	KnownCities []string
}

// pairKey is an ordered (from, to) city pair
type pairKey struct {
	from string
	to   string
}

// edgeKey returns the undirected key of a city pair
func edgeKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{from: a, to: b}
}

// RouteEntry is one deduplicated city chain with every carrier reporting it
type RouteEntry struct {
	Chain    []string
	Carriers []CarrierID // ascending
}

// Index is the immutable carrier coverage index. A rebuild produces a new
// Index; readers holding a reference never see a partial state.
type Index struct {
	ID      string // unique per build
	Hash    string // ContentHash of the carriers it was built from
	BuiltAt time.Time

	key string // manager build key, set before publication

	carriers      []models.Carrier
	carrierIDs    map[string]CarrierID
	carrierRoutes [][]RouteID // carrier -> catalog entries it reports

	catalog      []RouteEntry
	pairExact    map[pairKey][]RouteID
	subpath      map[pairKey][]RouteID
	longRoutes   []RouteID // catalog entries not expanded into subpath
	edgeCarriers map[pairKey][]CarrierID
	adjacency    map[string][]string
	cityCarriers map[string][]CarrierID
	knownCities  map[string]bool
}

// BuildIndex deduplicates carrier variants into a route catalog and derives
// the pair, subpath, edge, adjacency and city lookups from it.
// Variants shorter than two cities are rejected.
func BuildIndex(carriers []models.Carrier, opts Options) (*Index, error) {
	start := time.Now()
	if opts.MaxIndexedChain <= 0 {
		opts.MaxIndexedChain = DefaultMaxIndexedChain
	}

	idx := &Index{
		ID:           uuid.NewString(),
		Hash:         ContentHash(carriers),
		carrierIDs:   make(map[string]CarrierID, len(carriers)),
		pairExact:    make(map[pairKey][]RouteID),
		subpath:      make(map[pairKey][]RouteID),
		edgeCarriers: make(map[pairKey][]CarrierID),
		adjacency:    make(map[string][]string),
		cityCarriers: make(map[string][]CarrierID),
		knownCities:  make(map[string]bool, len(opts.KnownCities)),
	}
	for _, c := range opts.KnownCities {
		idx.knownCities[c] = true
	}

	// 1. Deduplicate variants into the catalog
	chainIDs := make(map[string]RouteID)
	routeCarriers := make(map[RouteID]map[CarrierID]struct{})

	for _, c := range carriers {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &ValidationError{Variant: -1, Reason: "carrier with empty name"}
		}
		cid, ok := idx.carrierIDs[c.Name]
		if !ok {
			cid = CarrierID(len(idx.carriers))
			idx.carrierIDs[c.Name] = cid
			idx.carriers = append(idx.carriers, c)
			idx.carrierRoutes = append(idx.carrierRoutes, nil)
		}

		for vi, v := range c.Variants {
			if err := validateVariant(c.Name, vi, v.CityIDs); err != nil {
				return nil, err
			}
			key := strings.Join(v.CityIDs, "\x1f")
			rid, ok := chainIDs[key]
			if !ok {
				rid = RouteID(len(idx.catalog))
				chainIDs[key] = rid
				idx.catalog = append(idx.catalog, RouteEntry{Chain: slices.Clone(v.CityIDs)})
				routeCarriers[rid] = make(map[CarrierID]struct{})
			}
			if _, dup := routeCarriers[rid][cid]; !dup {
				routeCarriers[rid][cid] = struct{}{}
				idx.carrierRoutes[cid] = append(idx.carrierRoutes[cid], rid)
			}
		}
	}

	// 2. Derive lookups from the deduplicated catalog
	pairExact := make(map[pairKey]map[RouteID]struct{})
	subpath := make(map[pairKey]map[RouteID]struct{})
	edges := make(map[pairKey]map[CarrierID]struct{})
	adjacency := make(map[string]map[string]struct{})
	cities := make(map[string]map[CarrierID]struct{})

	for i := range idx.catalog {
		rid := RouteID(i)
		entry := &idx.catalog[i]
		entry.Carriers = sortedKeys(routeCarriers[rid])
		chain := entry.Chain

		addTo(pairExact, pairKey{from: chain[0], to: chain[len(chain)-1]}, rid)

		if len(chain) <= opts.MaxIndexedChain {
			for a := 0; a < len(chain)-1; a++ {
				for b := a + 1; b < len(chain); b++ {
					addTo(subpath, pairKey{from: chain[a], to: chain[b]}, rid)
				}
			}
		} else {
			idx.longRoutes = append(idx.longRoutes, rid)
		}

		for a := 0; a < len(chain)-1; a++ {
			ek := edgeKey(chain[a], chain[a+1])
			for _, cid := range entry.Carriers {
				addTo(edges, ek, cid)
			}
			addTo(adjacency, chain[a], chain[a+1])
			addTo(adjacency, chain[a+1], chain[a])
		}
		for _, city := range chain {
			for _, cid := range entry.Carriers {
				addTo(cities, city, cid)
			}
		}
	}

	idx.pairExact = finalize(pairExact)
	idx.subpath = finalize(subpath)
	idx.edgeCarriers = finalize(edges)
	idx.adjacency = finalize(adjacency)
	idx.cityCarriers = finalize(cities)
	idx.BuiltAt = time.Now()

	log.Printf("Carrier index built: %d carriers, %d unique routes, %d cities, %d edges in %s (hash %.12s)",
		len(idx.carriers), len(idx.catalog), len(idx.cityCarriers), len(idx.edgeCarriers),
		time.Since(start).Round(time.Millisecond), idx.Hash)

	return idx, nil
}

func validateVariant(carrier string, vi int, chain []string) error {
	if len(chain) < 2 {
		return &ValidationError{Carrier: carrier, Variant: vi, Reason: fmt.Sprintf("route variant has %d cities, need at least 2", len(chain))}
	}
	for i, city := range chain {
		if strings.TrimSpace(city) == "" {
			return &ValidationError{Carrier: carrier, Variant: vi, Reason: fmt.Sprintf("empty city id at position %d", i)}
		}
		if i > 0 && chain[i-1] == city {
			return &ValidationError{Carrier: carrier, Variant: vi, Reason: fmt.Sprintf("city %q repeated at consecutive positions", city)}
		}
	}
	return nil
}

// ContentHash returns a sha256 of the carrier list. Equal input yields an equal hash.
func ContentHash(carriers []models.Carrier) string {
	data, err := json.Marshal(carriers)
	if err != nil {
		// plain structs of strings always marshal
		panic(fmt.Sprintf("coverage: marshal carriers: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CarriersByExactPair returns the carriers with a variant starting at from and ending at to
func (idx *Index) CarriersByExactPair(from, to string) []string {
	return idx.carrierNames(idx.pairExact[pairKey{from: from, to: to}])
}

// CarriersBySubpath returns the carriers with a variant visiting from and later to
func (idx *Index) CarriersBySubpath(from, to string) []string {
	return idx.carrierNames(idx.routesBySubpath(from, to))
}

// RoutesBySubpath returns the catalog chains visiting from and later to
func (idx *Index) RoutesBySubpath(from, to string) [][]string {
	rids := idx.routesBySubpath(from, to)
	chains := make([][]string, 0, len(rids))
	for _, rid := range rids {
		chains = append(chains, idx.catalog[rid].Chain)
	}
	return chains
}

// CarriersByEdge returns the carriers covering the consecutive pair in either direction
func (idx *Index) CarriersByEdge(a, b string) []string {
	ids := idx.edgeCarriers[edgeKey(a, b)]
	names := make([]string, 0, len(ids))
	for _, cid := range ids {
		names = append(names, idx.carriers[cid].Name)
	}
	slices.Sort(names)
	return names
}

// AdjacentCities returns the cities one carrier-covered edge away
func (idx *Index) AdjacentCities(city string) []string {
	return idx.adjacency[city]
}

// Catalog returns the deduplicated route list
func (idx *Index) Catalog() []RouteEntry {
	return idx.catalog
}

// CarrierCount returns the number of distinct carriers
func (idx *Index) CarrierCount() int {
	return len(idx.carriers)
}

// HasCity reports whether a city is touched by a carrier or was declared known
func (idx *Index) HasCity(city string) bool {
	if idx.knownCities[city] {
		return true
	}
	_, ok := idx.cityCarriers[city]
	return ok
}

// routesBySubpath merges the expanded index with a scan of the long chains
func (idx *Index) routesBySubpath(from, to string) []RouteID {
	rids := idx.subpath[pairKey{from: from, to: to}]
	if len(idx.longRoutes) == 0 {
		return rids
	}

	var extra []RouteID
	for _, rid := range idx.longRoutes {
		if _, _, ok := shortestOccurrence(idx.catalog[rid].Chain, from, to); ok {
			extra = append(extra, rid)
		}
	}
	if len(extra) == 0 {
		return rids
	}
	merged := append(slices.Clone(rids), extra...)
	slices.Sort(merged)
	return merged
}

func (idx *Index) carrierNames(rids []RouteID) []string {
	seen := make(map[CarrierID]struct{})
	for _, rid := range rids {
		for _, cid := range idx.catalog[rid].Carriers {
			seen[cid] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for cid := range seen {
		names = append(names, idx.carriers[cid].Name)
	}
	slices.Sort(names)
	return names
}

// shortestOccurrence finds the shortest window chain[i..j] with chain[i]==from,
// chain[j]==to and i<j
func shortestOccurrence(chain []string, from, to string) (int, int, bool) {
	bestI, bestJ := -1, -1
	last := -1 // latest position of from seen so far
	for j, city := range chain {
		if city == to && last >= 0 && (bestI < 0 || j-last < bestJ-bestI) {
			bestI, bestJ = last, j
		}
		if city == from {
			last = j
		}
	}
	return bestI, bestJ, bestI >= 0
}

func addTo[K comparable, V comparable](m map[K]map[V]struct{}, k K, v V) {
	set, ok := m[k]
	if !ok {
		set = make(map[V]struct{})
		m[k] = set
	}
	set[v] = struct{}{}
}

func sortedKeys[V interface{ ~int32 | ~string }](set map[V]struct{}) []V {
	out := make([]V, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func finalize[K comparable, V interface{ ~int32 | ~string }](m map[K]map[V]struct{}) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, set := range m {
		out[k] = sortedKeys(set)
	}
	return out
}
