package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Projection converts between a raster's native projected coordinates and
// WGS-84 longitude/latitude. Detections are always reported in WGS-84
// regardless of the tile's native CRS.
type Projection interface {
	ToWGS84(x, y float64) (lon, lat float64)
	FromWGS84(lon, lat float64) (x, y float64)
}

// ProjectionFor resolves a CRS identifier to a Projection. Supported are
// EPSG:4326 (identity) and the UTM zones EPSG:326xx / EPSG:327xx, which
// cover the catalog's radar products.
func ProjectionFor(crs string) (Projection, error) {
	code := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	if code == "4326" {
		return WGS84{}, nil
	}
	if len(code) == 5 && (strings.HasPrefix(code, "326") || strings.HasPrefix(code, "327")) {
		zone, err := strconv.Atoi(code[3:])
		if err != nil || zone < 1 || zone > 60 {
			return nil, fmt.Errorf("invalid utm zone in crs %q", crs)
		}
		return UTM{Zone: zone, South: strings.HasPrefix(code, "327")}, nil
	}
	return nil, fmt.Errorf("unsupported crs %q", crs)
}

// WGS84 is the identity projection: native coordinates already are lon/lat.
type WGS84 struct{}

func (WGS84) ToWGS84(x, y float64) (float64, float64)       { return x, y }
func (WGS84) FromWGS84(lon, lat float64) (float64, float64) { return lon, lat }

// UTM implements the Universal Transverse Mercator projection on the WGS-84
// ellipsoid using the standard series expansion. Accuracy is well under a
// millimetre inside a zone, far below the sub-pixel round-trip requirement.
type UTM struct {
	Zone  int
	South bool
}

const (
	utmA          = 6378137.0         // WGS-84 semi-major axis
	utmF          = 1 / 298.257223563 // WGS-84 flattening
	utmK0         = 0.9996            // central meridian scale
	utmFalseEast  = 500000.0
	utmFalseNorth = 10000000.0
	degToRad      = math.Pi / 180
	radToDeg      = 180 / math.Pi
)

func (u UTM) centralMeridian() float64 {
	return float64(u.Zone*6-183) * degToRad
}

// FromWGS84 projects lon/lat (degrees) to UTM easting/northing (metres).
func (u UTM) FromWGS84(lon, lat float64) (x, y float64) {
	e2 := utmF * (2 - utmF)
	ep2 := e2 / (1 - e2)

	phi := lat * degToRad
	lam := lon * degToRad

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	n := utmA / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lam - u.centralMeridian())

	m := meridionalArc(phi, e2)

	x = utmK0*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmFalseEast
	y = utmK0 * (m + n*math.Tan(phi)*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if u.South {
		y += utmFalseNorth
	}
	return x, y
}

// ToWGS84 inverts the projection back to lon/lat in degrees.
func (u UTM) ToWGS84(x, y float64) (lon, lat float64) {
	e2 := utmF * (2 - utmF)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	easting := x - utmFalseEast
	northing := y
	if u.South {
		northing -= utmFalseNorth
	}

	// Footpoint latitude from the meridional arc.
	m := northing / utmK0
	mu := m / (utmA * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sin(phi1), math.Cos(phi1)
	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := math.Tan(phi1) * math.Tan(phi1)
	n1 := utmA / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := utmA * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := easting / (n1 * utmK0)

	phi := phi1 - (n1*math.Tan(phi1)/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lam := u.centralMeridian() + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lam * radToDeg, phi * radToDeg
}

// meridionalArc computes the distance along the meridian from the equator
// to latitude phi on the WGS-84 ellipsoid.
func meridionalArc(phi, e2 float64) float64 {
	return utmA * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))
}
