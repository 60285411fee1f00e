package domain

import "math"

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Geo represents a WGS-84 longitude/latitude coordinate pair.
type Geo struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// DistanceKm returns the great-circle (haversine) distance to other in km.
func (g Geo) DistanceKm(other Geo) float64 {
	dLat := (other.Lat - g.Lat) * math.Pi / 180
	dLon := (other.Lon - g.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(g.Lat*math.Pi/180)*math.Cos(other.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BBox is an axis-aligned geographic bounding box in WGS-84.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Valid reports whether the box has positive area and coordinates in range.
func (b BBox) Valid() bool {
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return false
	}
	return b.MinLon >= -180 && b.MaxLon <= 180 && b.MinLat >= -90 && b.MaxLat <= 90
}

// Contains reports whether the point lies inside the box, boundary inclusive.
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Center returns the midpoint of the box.
func (b BBox) Center() Geo {
	return Geo{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// Intersects reports whether two boxes share any area or boundary.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon &&
		b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat
}

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLon: math.Min(b.MinLon, o.MinLon),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// AreaKm2 approximates the box area in square kilometres, accounting for
// longitude convergence at the box's mid latitude.
func (b BBox) AreaKm2() float64 {
	latMid := (b.MinLat + b.MaxLat) / 2 * math.Pi / 180
	kx := 111412.84 * math.Cos(latMid) // metres per degree longitude
	ky := 111132.92 - 559.82*math.Cos(2*latMid)
	dLon := b.MaxLon - b.MinLon
	dLat := b.MaxLat - b.MinLat
	return math.Abs(dLon*kx*dLat*ky) / 1e6
}

// Ring returns the box corners as a closed polygon ring, counter-clockwise.
func (b BBox) Ring() []Geo {
	return []Geo{
		{Lon: b.MinLon, Lat: b.MinLat},
		{Lon: b.MaxLon, Lat: b.MinLat},
		{Lon: b.MaxLon, Lat: b.MaxLat},
		{Lon: b.MinLon, Lat: b.MaxLat},
		{Lon: b.MinLon, Lat: b.MinLat},
	}
}

// Polygon is a simple geographic polygon given as an exterior ring.
// The ring may be open or closed; Contains treats it as closed.
type Polygon struct {
	Ring []Geo `json:"ring"`
}

// Valid reports whether the polygon has at least three distinct vertices.
func (p Polygon) Valid() bool {
	ring := p.closedRing()
	return len(ring) >= 4
}

// BBox returns the polygon's bounding box.
func (p Polygon) BBox() BBox {
	box := BBox{MinLon: math.Inf(1), MinLat: math.Inf(1), MaxLon: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, v := range p.Ring {
		box.MinLon = math.Min(box.MinLon, v.Lon)
		box.MinLat = math.Min(box.MinLat, v.Lat)
		box.MaxLon = math.Max(box.MaxLon, v.Lon)
		box.MaxLat = math.Max(box.MaxLat, v.Lat)
	}
	return box
}

// Contains reports whether the point lies inside the polygon using ray
// casting. Points on an edge or vertex are treated as contained, matching
// the inclusive-boundary convention of BBox.Contains.
func (p Polygon) Contains(lon, lat float64) bool {
	ring := p.closedRing()
	if len(ring) < 4 {
		return false
	}

	inside := false
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]

		if onSegment(a, b, lon, lat) {
			return true
		}
		if (a.Lat > lat) != (b.Lat > lat) {
			xCross := a.Lon + (lat-a.Lat)*(b.Lon-a.Lon)/(b.Lat-a.Lat)
			if lon < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func (p Polygon) closedRing() []Geo {
	if len(p.Ring) < 3 {
		return nil
	}
	ring := p.Ring
	if ring[0] != ring[len(ring)-1] {
		ring = append(append([]Geo{}, ring...), ring[0])
	}
	return ring
}

// onSegment reports whether (lon, lat) lies on the segment a-b within a
// small tolerance.
func onSegment(a, b Geo, lon, lat float64) bool {
	const eps = 1e-12
	cross := (b.Lon-a.Lon)*(lat-a.Lat) - (b.Lat-a.Lat)*(lon-a.Lon)
	if math.Abs(cross) > eps {
		return false
	}
	dot := (lon-a.Lon)*(b.Lon-a.Lon) + (lat-a.Lat)*(b.Lat-a.Lat)
	if dot < -eps {
		return false
	}
	sq := (b.Lon-a.Lon)*(b.Lon-a.Lon) + (b.Lat-a.Lat)*(b.Lat-a.Lat)
	return dot <= sq+eps
}
