package routing

import (
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/models"
)

// BuildSegments converts a node path into city-level segments.
// Consecutive nodes at different cities are a ride on the line of the edge;
// consecutive nodes at the same city are a transfer onto the line of the second node.
func BuildSegments(g *graph.Graph, nodes []graph.NodeID) []models.Segment {
	segments := make([]models.Segment, 0, len(nodes))
	for i := 0; i+1 < len(nodes); i++ {
		from := g.Node(nodes[i])
		to := g.Node(nodes[i+1])

		if from.City == to.City {
			segments = append(segments, models.Segment{
				From:       g.City(from.City).ID,
				To:         g.City(to.City).ID,
				Line:       g.Line(to.Line).ID,
				IsTransfer: true,
			})
			continue
		}

		segments = append(segments, models.Segment{
			From: g.City(from.City).ID,
			To:   g.City(to.City).ID,
			Line: g.Line(from.Line).ID,
		})
	}
	return segments
}

// BuildSteps constructs step-by-step directions from segments.
// Consolidates consecutive RIDE segments on the same line into a single step
func BuildSteps(segments []models.Segment) []models.Step {
	if len(segments) == 0 {
		return []models.Step{}
	}

	steps := []models.Step{}
	var currentStep *models.Step

	for _, seg := range segments {
		step := models.Step{
			Type:     models.SegmentRide,
			FromCity: seg.From,
			ToCity:   seg.To,
			Line:     seg.Line,
		}
		if seg.IsTransfer {
			step.Type = models.SegmentTransfer
		} else {
			step.NumStops = 1
			step.Cities = []string{seg.From, seg.To}
		}

		if currentStep != nil &&
			currentStep.Type == models.SegmentRide &&
			step.Type == models.SegmentRide &&
			currentStep.Line == step.Line {
			// Same line, extend the current step
			currentStep.ToCity = step.ToCity
			currentStep.Cities = append(currentStep.Cities, step.ToCity)
			currentStep.NumStops++
		} else {
			if currentStep != nil {
				steps = append(steps, *currentStep)
			}
			currentStep = &step
		}
	}

	if currentStep != nil {
		steps = append(steps, *currentStep)
	}

	return steps
}
