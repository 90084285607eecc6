// Package enu establishes a local east-north-up frame over a map
// extract and projects geodetic coordinates into it. The projection is
// an equirectangular tangent-plane approximation: accurate to well
// under a meter for city-scale extracts (tens of kilometers), which is
// the working range of this pipeline.
package enu

import (
	"fmt"
	"math"

	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
)

// EarthRadius is the WGS84 equatorial radius in meters.
const EarthRadius = 6378137.0

// Point is a position in the local frame, meters.
type Point struct {
	East  float64
	North float64
	Up    float64
}

// Frame is a local tangent-plane frame anchored at a geodetic origin.
// The origin projects to exactly (0, 0, 0).
type Frame struct {
	OriginLat    float64
	OriginLon    float64
	OriginHeight float64

	// cosLat is fixed at the origin so the projection is a pure linear
	// map and round-trips exactly up to float rounding.
	cosLat float64
}

// NewFrame creates a frame anchored at the given geodetic origin.
func NewFrame(lat, lon, height float64) *Frame {
	return &Frame{
		OriginLat:    lat,
		OriginLon:    lon,
		OriginHeight: height,
		cosLat:       math.Cos(lat * math.Pi / 180.0),
	}
}

// FrameFromExtract anchors a frame at the midpoint of the extract's
// node bounding box. The same extract always yields the same frame.
func FrameFromExtract(e *osmmap.Extract) (*Frame, error) {
	b, err := e.ComputeBounds()
	if err != nil {
		return nil, fmt.Errorf("enu: cannot establish frame: %w", err)
	}
	return NewFrame((b.MinLat+b.MaxLat)/2.0, (b.MinLon+b.MaxLon)/2.0, 0), nil
}

// Project converts geodetic coordinates to the local frame.
func (f *Frame) Project(lat, lon, height float64) Point {
	return Point{
		East:  (lon - f.OriginLon) * math.Pi / 180.0 * EarthRadius * f.cosLat,
		North: (lat - f.OriginLat) * math.Pi / 180.0 * EarthRadius,
		Up:    height - f.OriginHeight,
	}
}

// ProjectNode projects an extract node, using its ele tag as height.
func (f *Frame) ProjectNode(n *osmmap.Node) Point {
	return f.Project(n.Lat, n.Lon, n.Ele)
}

// Unproject converts a local point back to geodetic coordinates.
func (f *Frame) Unproject(p Point) (lat, lon, height float64) {
	lat = f.OriginLat + p.North/(math.Pi/180.0*EarthRadius)
	lon = f.OriginLon + p.East/(math.Pi/180.0*EarthRadius*f.cosLat)
	height = p.Up + f.OriginHeight
	return lat, lon, height
}

// Distance2D is the planar distance between two points, ignoring Up.
func Distance2D(a, b Point) float64 {
	return math.Hypot(b.East-a.East, b.North-a.North)
}
