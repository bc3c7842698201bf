package coverage

import (
	"fmt"
	"slices"
	"strings"

	"github.com/passbi/corridor_router/internal/models"
)

// Search defaults
const (
	DefaultMaxSegments     = 3
	DefaultMaxPaths        = 256
	DefaultMaxCombinations = 64
)

// SearchOptions bounds the composite search. Zero values take the defaults.
type SearchOptions struct {
	MaxSegments     int // carrier segments allowed per composite route
	MaxPaths        int // shortest city paths considered
	MaxCombinations int // carrier choices expanded per path
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.MaxSegments <= 0 {
		o.MaxSegments = DefaultMaxSegments
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = DefaultMaxPaths
	}
	if o.MaxCombinations <= 0 {
		o.MaxCombinations = DefaultMaxCombinations
	}
	return o
}

// segment is a run of path edges [start, end] covered by every carrier in the set
type segment struct {
	start    int
	end      int
	carriers []CarrierID
}

// Search runs the exact, geozone and composite strategies for one query.
// Exact lists carriers with a variant running from..to end to end. Geozone
// lists the remaining carriers visiting from before to in some variant.
// Composite chains carriers along the shortest city paths of the coverage
// graph, skipping chains already reported.
func Search(idx *Index, from, to string, opts SearchOptions) (models.CarrierSearchResult, error) {
	result := models.CarrierSearchResult{
		Exact:     []models.CarrierInfo{},
		Geozone:   []models.CarrierInfo{},
		Composite: []models.CompositeRoute{},
	}
	if !idx.HasCity(from) {
		return result, fmt.Errorf("%w: %s", ErrUnknownCity, from)
	}
	if !idx.HasCity(to) {
		return result, fmt.Errorf("%w: %s", ErrUnknownCity, to)
	}
	if from == to {
		return result, nil
	}
	opts = opts.withDefaults()

	reported := make(map[string]bool)

	exactCarriers := make(map[CarrierID]bool)
	result.Exact = idx.exact(from, to, exactCarriers, reported)
	result.Geozone = idx.geozone(from, to, exactCarriers, reported)
	result.Composite = idx.composite(from, to, opts, reported)

	return result, nil
}

// exact reports, per carrier, the variants starting at from and ending at to.
// A variant visiting from or to more than once is reported by its shortest
// window, and each carrier keeps its shortest chain.
func (idx *Index) exact(from, to string, matched map[CarrierID]bool, reported map[string]bool) []models.CarrierInfo {
	best := make(map[CarrierID][]string)
	for _, rid := range idx.pairExact[pairKey{from: from, to: to}] {
		entry := idx.catalog[rid]
		i, j, ok := shortestOccurrence(entry.Chain, from, to)
		if !ok {
			continue
		}
		window := entry.Chain[i : j+1]
		for _, cid := range entry.Carriers {
			if cur, seen := best[cid]; !seen || len(window) < len(cur) {
				best[cid] = window
			}
		}
	}
	return idx.collect(best, matched, reported)
}

// geozone uses the city inverted index to find carriers touching both cities,
// then keeps those visiting from strictly before to and reports the shortest window
func (idx *Index) geozone(from, to string, exclude map[CarrierID]bool, reported map[string]bool) []models.CarrierInfo {
	best := make(map[CarrierID][]string)
	for _, cid := range intersect(idx.cityCarriers[from], idx.cityCarriers[to]) {
		if exclude[cid] {
			continue
		}
		for _, rid := range idx.carrierRoutes[cid] {
			chain := idx.catalog[rid].Chain
			i, j, ok := shortestOccurrence(chain, from, to)
			if !ok {
				continue
			}
			if cur, seen := best[cid]; !seen || j-i+1 < len(cur) {
				best[cid] = chain[i : j+1]
			}
		}
	}
	return idx.collect(best, nil, reported)
}

// collect turns per-carrier chains into CarrierInfo ordered by carrier name
func (idx *Index) collect(best map[CarrierID][]string, matched map[CarrierID]bool, reported map[string]bool) []models.CarrierInfo {
	ids := make([]CarrierID, 0, len(best))
	for cid := range best {
		ids = append(ids, cid)
	}
	slices.SortFunc(ids, func(a, b CarrierID) int {
		return strings.Compare(idx.carriers[a].Name, idx.carriers[b].Name)
	})

	infos := make([]models.CarrierInfo, 0, len(ids))
	for _, cid := range ids {
		chain := slices.Clone(best[cid])
		infos = append(infos, idx.info(cid, chain))
		reported[chainKey(chain)] = true
		if matched != nil {
			matched[cid] = true
		}
	}
	return infos
}

// composite enumerates shortest coverage paths and splits them into carrier segments
func (idx *Index) composite(from, to string, opts SearchOptions, reported map[string]bool) []models.CompositeRoute {
	routes := []models.CompositeRoute{}
	seen := make(map[string]bool)

	for _, path := range idx.allShortestPaths(from, to, opts.MaxPaths) {
		if reported[chainKey(path)] {
			continue
		}
		segments, ok := idx.splitByCarrier(path)
		if !ok || len(segments) > opts.MaxSegments {
			continue
		}

		frequency := len(segments[0].carriers)
		for _, s := range segments[1:] {
			frequency = min(frequency, len(s.carriers))
		}

		for _, choice := range combinations(segments, opts.MaxCombinations) {
			key := comboKey(path, choice)
			if seen[key] {
				continue
			}
			seen[key] = true

			legs := make([]models.CarrierInfo, len(segments))
			for i, s := range segments {
				legs[i] = idx.info(choice[i], slices.Clone(path[s.start:s.end+1]))
			}
			routes = append(routes, models.CompositeRoute{
				Path:      slices.Clone(path),
				Legs:      legs,
				Frequency: frequency,
				Length:    len(path) - 1,
				Transfers: len(segments) - 1,
			})
		}
	}
	return routes
}

// allShortestPaths enumerates up to limit shortest city paths over the
// coverage adjacency. Predecessors of a city are its neighbours one level
// closer to from.
func (idx *Index) allShortestPaths(from, to string, limit int) [][]string {
	depth := idx.depths(from, to)
	if _, ok := depth[to]; !ok {
		return nil
	}

	// walk back from the destination with an explicit stack
	var paths [][]string
	type frame struct {
		city string
		tail []string // reversed path from the destination
	}
	stack := []frame{{city: to, tail: []string{to}}}
	for len(stack) > 0 && len(paths) < limit {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.city == from {
			path := slices.Clone(f.tail)
			slices.Reverse(path)
			paths = append(paths, path)
			continue
		}
		d := depth[f.city]
		ns := idx.adjacency[f.city]
		for i := len(ns) - 1; i >= 0; i-- {
			if pd, ok := depth[ns[i]]; !ok || pd != d-1 {
				continue
			}
			tail := append(slices.Clone(f.tail), ns[i])
			stack = append(stack, frame{city: ns[i], tail: tail})
		}
	}
	return paths
}

// depths runs a breadth-first search from from and returns the hop distance
// of every city reached. It stops after the level holding to.
func (idx *Index) depths(from, to string) map[string]int {
	depth := map[string]int{from: 0}
	frontier := []string{from}
	for len(frontier) > 0 {
		if _, ok := depth[to]; ok {
			break
		}
		var next []string
		for _, city := range frontier {
			for _, n := range idx.adjacency[city] {
				if _, seen := depth[n]; seen {
					continue
				}
				depth[n] = depth[city] + 1
				next = append(next, n)
			}
		}
		frontier = next
	}
	return depth
}

// splitByCarrier greedily merges consecutive edges while the carrier sets
// intersect. It fails when an edge has no carrier.
func (idx *Index) splitByCarrier(path []string) ([]segment, bool) {
	if len(path) < 2 {
		return nil, false
	}

	var segments []segment
	var current []CarrierID
	start := 0
	for i := 0; i < len(path)-1; i++ {
		carriers := idx.edgeCarriers[edgeKey(path[i], path[i+1])]
		if len(carriers) == 0 {
			return nil, false
		}
		if current == nil {
			current = carriers
			start = i
			continue
		}
		if common := intersect(current, carriers); len(common) > 0 {
			current = common
			continue
		}
		segments = append(segments, segment{start: start, end: i, carriers: current})
		current = carriers
		start = i
	}
	segments = append(segments, segment{start: start, end: len(path) - 1, carriers: current})
	return segments, true
}

// combinations expands one carrier choice per segment, at most limit of them
func combinations(segments []segment, limit int) [][]CarrierID {
	combos := [][]CarrierID{{}}
	for _, s := range segments {
		var next [][]CarrierID
		for _, prefix := range combos {
			for _, cid := range s.carriers {
				if len(next) >= limit {
					break
				}
				next = append(next, append(slices.Clone(prefix), cid))
			}
		}
		combos = next
	}
	return combos
}

// info builds the presentation record of a carrier for one covered chain
func (idx *Index) info(cid CarrierID, chain []string) models.CarrierInfo {
	c := idx.carriers[cid]
	label := c.Label
	if label == "" {
		label = c.Name
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.CarrierInfo{
		ID:     c.Name,
		Label:  label,
		Phone:  c.Phone,
		Tags:   tags,
		Routes: [][]string{chain},
	}
}

// intersect returns the common ids of two ascending slices
func intersect(a, b []CarrierID) []CarrierID {
	var out []CarrierID
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func chainKey(chain []string) string {
	return strings.Join(chain, "\x1f")
}

func comboKey(path []string, choice []CarrierID) string {
	var b strings.Builder
	b.WriteString(chainKey(path))
	for _, cid := range choice {
		fmt.Fprintf(&b, "|%d", cid)
	}
	return b.String()
}
