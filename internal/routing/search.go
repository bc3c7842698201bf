package routing

import (
	"container/heap"

	"github.com/passbi/corridor_router/internal/graph"
)

// virtualSource stands for the origin city itself: it is connected to every
// node of the origin city, so deviations can also change the starting line.
const virtualSource graph.NodeID = -1

// edgeRef identifies a directed edge, possibly leaving the virtual source
type edgeRef struct {
	from graph.NodeID
	to   graph.NodeID
}

// searchLimits holds the edges and nodes removed for one deviation search
type searchLimits struct {
	bannedEdges map[edgeRef]bool
	bannedNodes map[graph.NodeID]bool
}

// solver runs searches between one origin city and one destination city
type solver struct {
	g      *graph.Graph
	origin graph.CityIndex
	dest   graph.CityIndex
}

// bestPath runs a best-first search from all start nodes simultaneously and
// returns the cheapest node path to any node of the destination city.
// Costs are compared lexicographically, so a free edge is never ranked behind
// a one-transfer edge. The destination city is terminal and the origin city
// is never re-entered, which keeps leading and trailing transfers out.
func (s *solver) bestPath(starts []graph.NodeID, limits searchLimits) ([]graph.NodeID, graph.Cost, bool) {
	n := s.g.NodeCount()
	best := make([]graph.Cost, n)
	reached := make([]bool, n)
	done := make([]bool, n)
	prev := make([]graph.NodeID, n)

	openSet := &PriorityQueue{}
	heap.Init(openSet)
	seq := 0

	for _, start := range starts {
		if limits.bannedNodes[start] || reached[start] {
			continue
		}
		reached[start] = true
		prev[start] = virtualSource
		heap.Push(openSet, &searchPath{nodeID: start, seq: seq})
		seq++
	}

	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*searchPath)
		if done[current.nodeID] {
			continue // stale entry
		}
		done[current.nodeID] = true

		if s.g.Node(current.nodeID).City == s.dest {
			return reconstruct(prev, current.nodeID), current.cost, true
		}

		for _, edge := range s.g.Edges(current.nodeID) {
			if done[edge.To] || limits.bannedNodes[edge.To] {
				continue
			}
			if limits.bannedEdges[edgeRef{from: current.nodeID, to: edge.To}] {
				continue
			}
			if s.g.Node(edge.To).City == s.origin {
				continue
			}

			tentative := current.cost.Add(edge.Cost)
			if reached[edge.To] && !tentative.Less(best[edge.To]) {
				continue
			}

			reached[edge.To] = true
			best[edge.To] = tentative
			prev[edge.To] = current.nodeID
			heap.Push(openSet, &searchPath{nodeID: edge.To, cost: tentative, seq: seq})
			seq++
		}
	}

	return nil, graph.Cost{}, false
}

// reconstruct walks predecessors back to a start node
func reconstruct(prev []graph.NodeID, last graph.NodeID) []graph.NodeID {
	var path []graph.NodeID
	for n := last; n != virtualSource; n = prev[n] {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// searchPath represents an open-set entry during the search
type searchPath struct {
	nodeID graph.NodeID
	cost   graph.Cost
	seq    int // insertion order, keeps ties stable
	index  int // for heap
}

// PriorityQueue implements heap.Interface for the open set
type PriorityQueue []*searchPath

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost.Less(pq[j].cost)
	}
	return pq[i].seq < pq[j].seq
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	path := x.(*searchPath)
	path.index = n
	*pq = append(*pq, path)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	path := old[n-1]
	old[n-1] = nil
	path.index = -1
	*pq = old[0 : n-1]
	return path
}
