package models

import (
	"sort"
	"strings"
)

// Ranked merges the three strategies into one presentation order:
// frequency descending, then path length ascending, then transfers ascending.
// Ties keep exact before geozone before composite.
//
// For single-carrier matches, frequency is the number of carriers of the same
// strategy reporting the same chain.
func (r CarrierSearchResult) Ranked() []RankedOption {
	options := make([]RankedOption, 0, len(r.Exact)+len(r.Geozone)+len(r.Composite))
	options = appendSingle(options, MatchExact, r.Exact)
	options = appendSingle(options, MatchGeozone, r.Geozone)

	for _, c := range r.Composite {
		options = append(options, RankedOption{
			Kind:      MatchComposite,
			Path:      c.Path,
			Legs:      c.Legs,
			Frequency: c.Frequency,
			Length:    c.Length,
			Transfers: c.Transfers,
		})
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		return a.Transfers < b.Transfers
	})

	return options
}

func appendSingle(options []RankedOption, kind MatchKind, infos []CarrierInfo) []RankedOption {
	perChain := make(map[string]int, len(infos))
	for _, info := range infos {
		if len(info.Routes) > 0 {
			perChain[strings.Join(info.Routes[0], "\x1f")]++
		}
	}

	for _, info := range infos {
		if len(info.Routes) == 0 {
			continue
		}
		path := info.Routes[0]
		options = append(options, RankedOption{
			Kind:      kind,
			Path:      path,
			Legs:      []CarrierInfo{info},
			Frequency: perChain[strings.Join(path, "\x1f")],
			Length:    len(path) - 1,
		})
	}
	return options
}
