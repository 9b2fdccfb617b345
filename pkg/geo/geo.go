// Package geo implements the coordinate math the engine, radar subsystem,
// and command center all share: WGS84 ECEF conversion (ported from the
// teacher's duplicated latLonAltToECEF helper) and the local equirectangular
// projection the design notes mandate for planar distance and bearing work
// within a single regional scenario.
//
// The equirectangular approximation (1 degree of latitude/longitude treated
// as 111km, longitude scaled by cos(reference latitude)) is adequate for
// regional scenarios and is the approximation the existing outcome geometry
// depends on; replacing it with full geodesic math would change recorded
// distances and is treated as a compatibility break, not an improvement.
package geo

import "math"

const (
	// wgs84SemiMajorAxis is Earth's equatorial radius in meters.
	wgs84SemiMajorAxis = 6378137.0
	// wgs84Flattening is the WGS84 ellipsoid flattening factor.
	wgs84Flattening = 1.0 / 298.257223563

	// metersPerDegree is the equirectangular approximation: one degree of
	// latitude (and, after cosine scaling, longitude) is ~111km.
	metersPerDegree = 111_000.0

	// EarthRadiusM is the mean Earth radius used for the engine's
	// inverse-square gravity model.
	EarthRadiusM = 6_371_000.0
)

// Point is a geodetic position: longitude, latitude in degrees, altitude in
// meters (negative below sea level, matching the engine's convention for
// underwater launches and ground/sea impact checks).
type Point struct {
	Lon float64
	Lat float64
	Alt float64
}

// ECEF converts a geodetic point to Earth-Centered, Earth-Fixed Cartesian
// coordinates using the WGS84 ellipsoid. Ported from the entity
// constructors' duplicated conversion helper, kept as a single shared
// implementation instead of the teacher's two copies.
func (p Point) ECEF() (x, y, z float64) {
	latRad := p.Lat * math.Pi / 180.0
	lonRad := p.Lon * math.Pi / 180.0

	e2 := 2*wgs84Flattening - wgs84Flattening*wgs84Flattening
	sinLat := math.Sin(latRad)
	n := wgs84SemiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)

	x = (n + p.Alt) * math.Cos(latRad) * math.Cos(lonRad)
	y = (n + p.Alt) * math.Cos(latRad) * math.Sin(lonRad)
	z = (n*(1-e2) + p.Alt) * sinLat
	return x, y, z
}

// Local is a planar equirectangular projection centered on a reference
// point, in meters, with z carrying altitude through unchanged. Distances
// and bearings for intercept geometry, radar range checks, and battery
// envelope checks are all computed in this frame.
type Local struct {
	X, Y, Z float64
}

// Project converts p into the Local frame centered at ref.
func Project(p, ref Point) Local {
	cosRefLat := math.Cos(ref.Lat * math.Pi / 180.0)
	return Local{
		X: (p.Lon - ref.Lon) * metersPerDegree * cosRefLat,
		Y: (p.Lat - ref.Lat) * metersPerDegree,
		Z: p.Alt,
	}
}

// Unproject converts a Local point back to a geodetic Point relative to ref.
func Unproject(l Local, ref Point) Point {
	cosRefLat := math.Cos(ref.Lat * math.Pi / 180.0)
	if cosRefLat == 0 {
		cosRefLat = 1e-9
	}
	return Point{
		Lon: ref.Lon + l.X/(metersPerDegree*cosRefLat),
		Lat: ref.Lat + l.Y/metersPerDegree,
		Alt: l.Z,
	}
}

// Distance3D returns the straight-line distance in meters between two
// geodetic points, computed in the equirectangular frame centered on a.
func Distance3D(a, b Point) float64 {
	la := Project(a, a)
	lb := Project(b, a)
	dx := lb.X - la.X
	dy := lb.Y - la.Y
	dz := lb.Z - la.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HorizontalDistance returns the horizontal (ground-track) distance in
// meters between two geodetic points, ignoring altitude — used by the
// target-achieved detonation check, which treats horizontal proximity and
// altitude separately.
func HorizontalDistance(a, b Point) float64 {
	la := Project(a, a)
	lb := Project(b, a)
	dx := lb.X - la.X
	dy := lb.Y - la.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the geodetic midpoint between two points, used by the
// command center's intercept-point estimate.
func Midpoint(a, b Point) Point {
	return Point{
		Lon: (a.Lon + b.Lon) / 2,
		Lat: (a.Lat + b.Lat) / 2,
		Alt: (a.Alt + b.Alt) / 2,
	}
}

// Normalize returns v scaled to unit length; the zero vector is returned
// unchanged to avoid division by zero in the dynamics and guidance code.
func Normalize(x, y, z float64) (nx, ny, nz float64) {
	mag := math.Sqrt(x*x + y*y + z*z)
	if mag < 1e-9 {
		return 0, 0, 0
	}
	return x / mag, y / mag, z / mag
}
