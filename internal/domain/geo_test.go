package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoDistanceKm(t *testing.T) {
	paris := Geo{Lon: 2.3522, Lat: 48.8566}
	london := Geo{Lon: -0.1276, Lat: 51.5072}

	d := paris.DistanceKm(london)
	assert.InDelta(t, 344, d, 5, "Paris-London is about 344 km")
	assert.InDelta(t, d, london.DistanceKm(paris), 1e-9, "symmetric")
	assert.Zero(t, paris.DistanceKm(paris))
}

func TestBBoxValid(t *testing.T) {
	assert.True(t, BBox{MinLon: 5, MinLat: 4, MaxLon: 7, MaxLat: 6}.Valid())
	assert.False(t, BBox{MinLon: 7, MinLat: 4, MaxLon: 5, MaxLat: 6}.Valid(), "inverted lon")
	assert.False(t, BBox{MinLon: 5, MinLat: 4, MaxLon: 5, MaxLat: 6}.Valid(), "zero width")
	assert.False(t, BBox{MinLon: -181, MinLat: 4, MaxLon: 5, MaxLat: 6}.Valid())
	assert.False(t, BBox{MinLon: 5, MinLat: 4, MaxLon: 7, MaxLat: 91}.Valid())
}

func TestBBoxUnionAndIntersects(t *testing.T) {
	a := BBox{MinLon: 0, MinLat: 0, MaxLon: 2, MaxLat: 2}
	b := BBox{MinLon: 1, MinLat: 1, MaxLon: 3, MaxLat: 3}
	c := BBox{MinLon: 5, MinLat: 5, MaxLon: 6, MaxLat: 6}

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c))

	u := a.Union(b)
	assert.Equal(t, BBox{MinLon: 0, MinLat: 0, MaxLon: 3, MaxLat: 3}, u)
}

func TestBBoxAreaKm2(t *testing.T) {
	// One degree square at the equator is roughly 111x111 km.
	eq := BBox{MinLon: 0, MinLat: -0.5, MaxLon: 1, MaxLat: 0.5}
	assert.InDelta(t, 12300, eq.AreaKm2(), 150)

	// The same square at 60N covers about half the longitude span.
	north := BBox{MinLon: 0, MinLat: 59.5, MaxLon: 1, MaxLat: 60.5}
	assert.Less(t, north.AreaKm2(), eq.AreaKm2()*0.6)
}

func TestBBoxRingClosed(t *testing.T) {
	ring := BBox{MinLon: 5, MinLat: 4, MaxLon: 7, MaxLat: 6}.Ring()
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestNewDetectionIDDeterministic(t *testing.T) {
	center := Geo{Lon: 5.0123456, Lat: 4.9876543}

	a := NewDetectionID("tile-1", center, 0.9123)
	b := NewDetectionID("tile-1", center, 0.9123)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^slick-[0-9a-f]{16}$`, a)

	assert.NotEqual(t, a, NewDetectionID("tile-2", center, 0.9123))
	assert.NotEqual(t, a, NewDetectionID("tile-1", Geo{Lon: 5.0123457, Lat: 4.9876543}, 0.9123))
	assert.NotEqual(t, a, NewDetectionID("tile-1", center, 0.9124))
}
