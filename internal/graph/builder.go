package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/passbi/corridor_router/internal/models"
)

// variantKey identifies one ordered polyline of a line
type variantKey struct {
	lineID    string
	variantID string
}

// Build constructs the routing graph from the network part of a bundle.
// It emits RIDE edges between consecutive cities of every line variant and
// TRANSFER edges between the lines meeting at a city. Same-corridor transfers
// are free; cross-corridor transfers cost one transfer and exist only at
// corridor hubs.
func Build(bundle models.Bundle) (*Graph, error) {
	g := &Graph{
		ID:        uuid.NewString(),
		Hash:      NetworkHash(bundle),
		cityIndex: make(map[string]CityIndex, len(bundle.Cities)),
		lineIndex: make(map[string]LineIndex, len(bundle.Lines)),
		nodeIndex: make(map[Node]NodeID),
	}

	// 1. Index cities
	for _, c := range bundle.Cities {
		if c.ID == "" {
			return nil, &ValidationError{Reason: "city with empty id"}
		}
		if _, dup := g.cityIndex[c.ID]; dup {
			return nil, &ValidationError{CityID: c.ID, Reason: "duplicate city id"}
		}
		g.cityIndex[c.ID] = CityIndex(len(g.cities))
		g.cities = append(g.cities, c)
	}
	g.cityNodes = make([][]NodeID, len(g.cities))

	// 2. Index lines
	corridors := make(map[string]bool, len(bundle.Corridors))
	for _, c := range bundle.Corridors {
		corridors[c.ID] = true
	}
	for _, l := range bundle.Lines {
		if l.ID == "" {
			return nil, &ValidationError{Reason: "line with empty id"}
		}
		if _, dup := g.lineIndex[l.ID]; dup {
			return nil, &ValidationError{LineID: l.ID, Reason: "duplicate line id"}
		}
		if len(corridors) > 0 && !corridors[l.CorridorID] {
			return nil, &ValidationError{LineID: l.ID, Reason: fmt.Sprintf("unknown corridor %q", l.CorridorID)}
		}
		g.lineIndex[l.ID] = LineIndex(len(g.lines))
		g.lines = append(g.lines, l)
	}

	// 3. Group path entries by (line, variant) and sort by sequence
	paths, order, err := groupLinePaths(g, bundle.LinePaths)
	if err != nil {
		return nil, err
	}

	// 4. RIDE edges
	seen := make(map[[2]NodeID]bool)
	rideEdges := 0
	for _, key := range order {
		entries := paths[key]
		for i := 0; i < len(entries); i++ {
			g.node(entries[i].CityID, key.lineID)
		}
		for i := 0; i < len(entries)-1; i++ {
			a := g.node(entries[i].CityID, key.lineID)
			b := g.node(entries[i+1].CityID, key.lineID)
			if g.addEdge(seen, a, b, EdgeRide, rideCost) {
				rideEdges++
			}
			if g.addEdge(seen, b, a, EdgeRide, rideCost) {
				rideEdges++
			}
		}
	}

	// 5. TRANSFER edges
	transferEdges := 0
	for ci, nodes := range g.cityNodes {
		city := g.cities[ci]
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				cost, ok := g.transferCost(city, nodes[i], nodes[j])
				if !ok {
					continue
				}
				if g.addEdge(seen, nodes[i], nodes[j], EdgeTransfer, cost) {
					transferEdges++
				}
				if g.addEdge(seen, nodes[j], nodes[i], EdgeTransfer, cost) {
					transferEdges++
				}
			}
		}
	}

	log.Printf("Graph built: %d nodes, %d RIDE edges, %d TRANSFER edges (hash %.12s)",
		len(g.nodes), rideEdges, transferEdges, g.Hash)

	return g, nil
}

// groupLinePaths validates path entries and returns them grouped per variant in first-seen order
func groupLinePaths(g *Graph, entries []models.LinePath) (map[variantKey][]models.LinePath, []variantKey, error) {
	paths := make(map[variantKey][]models.LinePath)
	var order []variantKey

	for _, p := range entries {
		if _, ok := g.lineIndex[p.LineID]; !ok {
			return nil, nil, &ValidationError{LineID: p.LineID, VariantID: p.VariantID, Reason: "path references unknown line"}
		}
		if _, ok := g.cityIndex[p.CityID]; !ok {
			return nil, nil, &ValidationError{LineID: p.LineID, VariantID: p.VariantID, CityID: p.CityID, Reason: "path references unknown city"}
		}
		key := variantKey{lineID: p.LineID, variantID: p.VariantID}
		if _, ok := paths[key]; !ok {
			order = append(order, key)
		}
		paths[key] = append(paths[key], p)
	}

	for _, key := range order {
		stops := paths[key]
		sort.SliceStable(stops, func(i, j int) bool {
			return stops[i].Seq < stops[j].Seq
		})
		for i := 1; i < len(stops); i++ {
			if stops[i].Seq == stops[i-1].Seq {
				return nil, nil, &ValidationError{
					LineID:    key.lineID,
					VariantID: key.variantID,
					Reason:    fmt.Sprintf("duplicate sequence %d", stops[i].Seq),
				}
			}
			if stops[i].CityID == stops[i-1].CityID {
				return nil, nil, &ValidationError{
					LineID:    key.lineID,
					VariantID: key.variantID,
					CityID:    stops[i].CityID,
					Reason:    "city repeated at consecutive sequences",
				}
			}
		}
		paths[key] = stops
	}

	return paths, order, nil
}

// node returns the (city, line) node, creating it on first use
func (g *Graph) node(cityID, lineID string) NodeID {
	key := Node{City: g.cityIndex[cityID], Line: g.lineIndex[lineID]}
	if id, ok := g.nodeIndex[key]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, key)
	g.nodeIndex[key] = id
	g.edges = append(g.edges, nil)
	g.cityNodes[key.City] = append(g.cityNodes[key.City], id)
	return id
}

// addEdge appends a directed edge unless the pair is already connected
func (g *Graph) addEdge(seen map[[2]NodeID]bool, from, to NodeID, kind EdgeKind, cost Cost) bool {
	pair := [2]NodeID{from, to}
	if seen[pair] {
		return false
	}
	seen[pair] = true
	g.edges[from] = append(g.edges[from], Edge{To: to, Kind: kind, Cost: cost})
	g.edgeCount++
	return true
}

// transferCost applies the corridor rule to two lines meeting at a city
func (g *Graph) transferCost(city models.City, a, b NodeID) (Cost, bool) {
	la := g.lines[g.nodes[a].Line]
	lb := g.lines[g.nodes[b].Line]
	if la.CorridorID == lb.CorridorID {
		return freeTransferCost, true
	}
	if city.IsCorridorHub {
		return corridorChangeCost, true
	}
	return Cost{}, false
}

// NetworkHash returns a content hash of the cities, corridors, lines and line paths
func NetworkHash(bundle models.Bundle) string {
	payload := struct {
		Cities    []models.City
		Corridors []models.Corridor
		Lines     []models.Line
		LinePaths []models.LinePath
	}{bundle.Cities, bundle.Corridors, bundle.Lines, bundle.LinePaths}

	data, err := json.Marshal(payload)
	if err != nil {
		// plain structs of strings and numbers always marshal
		panic(fmt.Sprintf("graph: marshal network payload: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
