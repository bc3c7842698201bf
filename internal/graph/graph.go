package graph

import (
	"sync"

	"github.com/passbi/corridor_router/internal/models"
)

// NodeID is the arena index of a (city, line) node
type NodeID int32

// CityIndex is the arena index of a city
type CityIndex int32

// LineIndex is the arena index of a line
type LineIndex int32

// Node represents a (city, line) pair in the routing graph.
// Distinct lines at the same city are distinct nodes, so transfer costs
// attach to line changes and never to plain city visits.
type Node struct {
	City CityIndex
	Line LineIndex
}

// EdgeKind represents the type of connection between nodes
type EdgeKind uint8

const (
	EdgeRide EdgeKind = iota
	EdgeTransfer
)

func (k EdgeKind) String() string {
	if k == EdgeTransfer {
		return "TRANSFER"
	}
	return "RIDE"
}

// Cost is compared lexicographically: transfers first, then hops.
// It is never folded into a single scalar.
type Cost struct {
	Transfers int
	Hops      int
}

// Less reports whether c sorts strictly before o
func (c Cost) Less(o Cost) bool {
	if c.Transfers != o.Transfers {
		return c.Transfers < o.Transfers
	}
	return c.Hops < o.Hops
}

// Add returns the component-wise sum
func (c Cost) Add(o Cost) Cost {
	return Cost{Transfers: c.Transfers + o.Transfers, Hops: c.Hops + o.Hops}
}

var (
	rideCost           = Cost{Hops: 1}
	freeTransferCost   = Cost{}
	corridorChangeCost = Cost{Transfers: 1}
)

// Edge is an outgoing connection of a node
type Edge struct {
	To   NodeID
	Kind EdgeKind
	Cost Cost
}

// Graph is the immutable routing graph produced by Build.
// It is safe for concurrent reads.
type Graph struct {
	ID   string // unique per build
	Hash string // content hash of the network part of the bundle

	cities    []models.City
	cityIndex map[string]CityIndex
	lines     []models.Line
	lineIndex map[string]LineIndex

	nodes     []Node
	nodeIndex map[Node]NodeID
	edges     [][]Edge
	cityNodes [][]NodeID // city -> nodes of every line touching it
	edgeCount int
}

// CityIndexOf resolves a city id
func (g *Graph) CityIndexOf(cityID string) (CityIndex, bool) {
	ci, ok := g.cityIndex[cityID]
	return ci, ok
}

// City returns the city at an arena index
func (g *Graph) City(ci CityIndex) models.City {
	return g.cities[ci]
}

// Cities returns every city in load order
func (g *Graph) Cities() []models.City {
	return g.cities
}

// Line returns the line at an arena index
func (g *Graph) Line(li LineIndex) models.Line {
	return g.lines[li]
}

// Node returns the (city, line) pair of a node
func (g *Graph) Node(n NodeID) Node {
	return g.nodes[n]
}

// NodeByKey finds the node of a line at a city
func (g *Graph) NodeByKey(cityID, lineID string) (NodeID, bool) {
	ci, ok := g.cityIndex[cityID]
	if !ok {
		return 0, false
	}
	li, ok := g.lineIndex[lineID]
	if !ok {
		return 0, false
	}
	n, ok := g.nodeIndex[Node{City: ci, Line: li}]
	return n, ok
}

// Edges returns outgoing edges for a node
func (g *Graph) Edges(n NodeID) []Edge {
	return g.edges[n]
}

// EdgeBetween returns the edge from one node to another, if any
func (g *Graph) EdgeBetween(from, to NodeID) (Edge, bool) {
	for _, e := range g.edges[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// NodesAt returns the nodes of every line passing through a city
func (g *Graph) NodesAt(ci CityIndex) []NodeID {
	return g.cityNodes[ci]
}

// LinesAt returns the ids of the lines passing through a city
func (g *Graph) LinesAt(cityID string) []string {
	ci, ok := g.cityIndex[cityID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(g.cityNodes[ci]))
	for _, n := range g.cityNodes[ci] {
		ids = append(ids, g.lines[g.nodes[n].Line].ID)
	}
	return ids
}

// NodeCount returns the number of (city, line) nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Holder keeps the currently served graph and swaps it atomically on reload
type Holder struct {
	mu     sync.RWMutex
	graph  *Graph
	loaded bool
}

// NewHolder creates an empty holder
func NewHolder() *Holder {
	return &Holder{}
}

// Swap installs a freshly built graph. Readers holding the previous one keep using it.
func (h *Holder) Swap(g *Graph) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.loaded = g != nil
}

// Get returns the current graph and whether one has been loaded
func (h *Holder) Get() (*Graph, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph, h.loaded
}

// IsLoaded returns true if a graph has been installed
func (h *Holder) IsLoaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loaded
}
