// Package postprocess merges nearby raw patch detections into de-noised
// slick reports and filters out low-confidence or isolated hits.
package postprocess

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceansentry/slick-detect/internal/domain"
)

var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the package clock. Tests only.
func SetClock(c clockwork.Clock) { clock = c }

// Params tunes the spatial reducer. A detection survives when its confidence
// clears MinConfidence and its merged cluster has at least MinMembers members
// within RadiusKm of each other (transitively).
type Params struct {
	RadiusKm      float64
	MinConfidence float64
	MinMembers    int
}

// Preset parameter sets, in increasing order of stringency. Minimal keeps
// isolated hits; aggressive demands tight, multi-patch, high-confidence
// clusters.
var (
	Minimal    = Params{RadiusKm: 10.0, MinConfidence: 0.5, MinMembers: 1}
	Standard   = Params{RadiusKm: 5.0, MinConfidence: 0.6, MinMembers: 2}
	Aggressive = Params{RadiusKm: 3.0, MinConfidence: 0.7, MinMembers: 3}
)

// ParsePreset maps a configuration string onto one of the preset Params.
func ParsePreset(s string) (Params, error) {
	switch s {
	case "minimal":
		return Minimal, nil
	case "standard":
		return Standard, nil
	case "aggressive":
		return Aggressive, nil
	default:
		return Params{}, fmt.Errorf("unknown postprocess preset %q", s)
	}
}

// FromRaw lifts raw patch detections into singleton Detections so Reduce can
// treat fresh and already-merged inputs uniformly.
func FromRaw(raws []domain.RawDetection) []domain.Detection {
	out := make([]domain.Detection, 0, len(raws))
	for _, r := range raws {
		out = append(out, domain.Detection{
			ID:            domain.NewDetectionID(r.TileID, r.Center, r.Confidence),
			TileID:        r.TileID,
			Center:        r.Center,
			MemberCount:   1,
			MaxConfidence: r.Confidence,
			AvgConfidence: r.Confidence,
			Envelope:      r.Bounds,
			AreaKm2:       r.Bounds.AreaKm2(),
		})
	}
	return out
}

// Reduce clusters detections whose centers lie within RadiusKm of each other
// (great-circle distance, transitive closure), merges each cluster into one
// detection and drops clusters below the confidence or member floors.
//
// Member counts and confidence aggregates are carried through the merge, so
// reducing an already-reduced set reproduces it: Reduce(Reduce(d)) == Reduce(d)
// for clusters separated by more than RadiusKm.
func Reduce(detections []domain.Detection, p Params) []domain.Detection {
	kept := make([]domain.Detection, 0, len(detections))
	for _, d := range detections {
		if d.MaxConfidence >= p.MinConfidence {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	uf := newUnionFind(len(kept))
	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			if kept[i].Center.DistanceKm(kept[j].Center) <= p.RadiusKm {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]domain.Detection)
	for i, d := range kept {
		root := uf.find(i)
		groups[root] = append(groups[root], d)
	}

	out := make([]domain.Detection, 0, len(groups))
	for _, members := range groups {
		merged := merge(members)
		if merged.MemberCount >= p.MinMembers {
			out = append(out, merged)
		}
	}

	// Map iteration order is random; callers and tests rely on stable output.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Center.Lon != out[j].Center.Lon {
			return out[i].Center.Lon < out[j].Center.Lon
		}
		if out[i].Center.Lat != out[j].Center.Lat {
			return out[i].Center.Lat < out[j].Center.Lat
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// merge collapses one cluster. The centroid is weighted by each member's
// mean confidence times its member count, so a previously merged detection
// pulls with the weight of all its original patches.
func merge(members []domain.Detection) domain.Detection {
	var (
		sumWeight   float64
		sumLon      float64
		sumLat      float64
		memberCount int
		maxConf     float64
		envelope    = members[0].Envelope
		detectedAt  time.Time
	)

	for _, m := range members {
		w := m.AvgConfidence * float64(m.MemberCount)
		sumWeight += w
		sumLon += w * m.Center.Lon
		sumLat += w * m.Center.Lat
		memberCount += m.MemberCount
		if m.MaxConfidence > maxConf {
			maxConf = m.MaxConfidence
		}
		envelope = envelope.Union(m.Envelope)
		if !m.DetectedAt.IsZero() && (detectedAt.IsZero() || m.DetectedAt.Before(detectedAt)) {
			detectedAt = m.DetectedAt
		}
	}

	center := members[0].Center
	if sumWeight > 0 {
		center = domain.Geo{Lon: sumLon / sumWeight, Lat: sumLat / sumWeight}
	}
	if detectedAt.IsZero() {
		detectedAt = clock.Now().UTC()
	}

	return domain.Detection{
		ID:            domain.NewDetectionID(members[0].TileID, center, maxConf),
		TileID:        members[0].TileID,
		Center:        center,
		MemberCount:   memberCount,
		MaxConfidence: maxConf,
		AvgConfidence: sumWeight / float64(memberCount),
		Envelope:      envelope,
		AreaKm2:       envelope.AreaKm2(),
		DetectedAt:    detectedAt,
	}
}
