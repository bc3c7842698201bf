package models

// SegmentKind represents the type of an itinerary segment
type SegmentKind string

const (
	SegmentRide     SegmentKind = "RIDE"
	SegmentTransfer SegmentKind = "TRANSFER"
)

// LineStyle is the rendering style of a line
type LineStyle string

const (
	StyleSolid  LineStyle = "solid"
	StyleDashed LineStyle = "dashed"
	StyleDotted LineStyle = "dotted"
)

// City represents a point on the network map
type City struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	IsHub         bool    `json:"is_hub"`
	IsCorridorHub bool    `json:"is_corridor_hub"` // cross-corridor transfers allowed here
}

// Corridor groups lines that belong to one travel artery
type Corridor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// Line represents a published route inside a corridor
type Line struct {
	ID         string    `json:"id"`
	CorridorID string    `json:"corridor_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Style      LineStyle `json:"style,omitempty"`
	DrawOrder  int       `json:"draw_order"`
}

// LinePath is one ordered point of a line (or of one of its variants)
type LinePath struct {
	LineID    string `json:"line_id"`
	VariantID string `json:"variant_id,omitempty"`
	Seq       int    `json:"seq"`
	CityID    string `json:"city_id"`
}

// RouteVariant is one concrete city chain reported by a carrier
type RouteVariant struct {
	CityIDs []string `json:"city_ids"`
}

// Carrier is a third-party operator with its reported route variants
type Carrier struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Variants []RouteVariant `json:"variants"`
}

// Bundle is the in-memory dataset handed over by the ingestion layer
type Bundle struct {
	Cities    []City     `json:"cities"`
	Corridors []Corridor `json:"corridors"`
	Lines     []Line     `json:"lines"`
	LinePaths []LinePath `json:"line_paths"`
	Carriers  []Carrier  `json:"carriers"`
}

// Segment is one element of an itinerary handed to rendering
type Segment struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Line       string `json:"line"`
	IsTransfer bool   `json:"is_transfer"`
}

// Itinerary is a city-level route with its lexicographic cost
type Itinerary struct {
	Segments  []Segment `json:"segments"`
	Transfers int       `json:"transfers"`
	Hops      int       `json:"hops"`
}

// Step represents one consolidated leg of an itinerary summary
type Step struct {
	Type     SegmentKind `json:"type"`
	FromCity string      `json:"from_city"`
	ToCity   string      `json:"to_city"`
	Line     string      `json:"line"`
	NumStops int         `json:"num_stops,omitempty"`
	Cities   []string    `json:"cities,omitempty"` // every city visited by a RIDE step, inclusive
}

// CarrierInfo describes one carrier and the city chains it covers for a query
type CarrierInfo struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Phone  string     `json:"phone,omitempty"`
	Tags   []string   `json:"tags"`
	Routes [][]string `json:"routes"`
}

// CompositeRoute is a city path assembled from several carriers, one leg per segment
type CompositeRoute struct {
	Path      []string      `json:"path"`
	Legs      []CarrierInfo `json:"legs"`
	Frequency int           `json:"frequency"` // smallest carrier set among the segments
	Length    int           `json:"length"`    // edges in Path
	Transfers int           `json:"transfers"` // carrier changes
}

// CarrierSearchResult groups the three carrier retrieval strategies
type CarrierSearchResult struct {
	Exact     []CarrierInfo    `json:"exact"`
	Geozone   []CarrierInfo    `json:"geozone"`
	Composite []CompositeRoute `json:"composite"`
}

// MatchKind names the strategy that produced a ranked option
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchGeozone   MatchKind = "geozone"
	MatchComposite MatchKind = "composite"
)

// RankedOption is a presentation entry merged across strategies
type RankedOption struct {
	Kind      MatchKind     `json:"kind"`
	Path      []string      `json:"path"`
	Legs      []CarrierInfo `json:"legs"`
	Frequency int           `json:"frequency"`
	Length    int           `json:"length"`
	Transfers int           `json:"transfers"`
}
