package store

import (
	"testing"

	"github.com/passbi/corridor_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCarriers(t *testing.T) {
	input := []models.Carrier{
		{Name: "D1", Label: "North Express", Variants: []models.RouteVariant{{CityIDs: []string{"A", "B"}}}},
		{Name: "D2", Variants: []models.RouteVariant{{CityIDs: []string{"C", "D"}}}},
		{Name: "D1", Label: "ignored", Variants: []models.RouteVariant{{CityIDs: []string{"B", "C"}}}},
	}

	merged := mergeCarriers(input)
	require.Len(t, merged, 2)
	assert.Equal(t, "North Express", merged[0].Label)
	assert.Equal(t, []models.RouteVariant{
		{CityIDs: []string{"A", "B"}},
		{CityIDs: []string{"B", "C"}},
	}, merged[0].Variants)
	assert.Equal(t, "D2", merged[1].Name)

	assert.Len(t, input[0].Variants, 1, "input is not modified")
}
