// Package scene assembles a 3-D world from extracted road and
// footprint geometry and serializes it as SDF. The frame is Z-up:
// east maps to +X, north to +Y.
package scene

import "github.com/umakossiooo/osm-city-pipeline/internal/enu"

// Pose is a position plus yaw in the world frame, meters and radians.
type Pose struct {
	X, Y, Z float64
	Yaw     float64
}

// Slab is an axis-sized box laid flat: road slices, sidewalk slices
// and park pads all render as slabs.
type Slab struct {
	Name   string
	Pose   Pose
	Length float64 // along the yaw direction
	Width  float64
	Height float64
	Color  Color
}

// Prism is a footprint extruded upward from the ground.
type Prism struct {
	Name   string
	Outer  []enu.Point
	Inners [][]enu.Point
	Height float64
	Color  Color
}

// TreeModel is a trunk cylinder topped with a crown sphere.
type TreeModel struct {
	Name        string
	Position    enu.Point
	TrunkHeight float64
	TrunkRadius float64
	CrownRadius float64
}

// Color is an RGBA diffuse color.
type Color struct {
	R, G, B, A float64
}

// Scene is the assembled world, ready for serialization.
type Scene struct {
	WorldName string
	MeshURI   string // optional extra model include

	RoadSlabs     []Slab
	SidewalkSlabs []Slab
	ParkPads      []Prism
	Buildings     []Prism
	Trees         []TreeModel
}

var (
	roadColor     = Color{0.2, 0.2, 0.2, 1.0}
	sidewalkColor = Color{0.55, 0.55, 0.55, 1.0}
	buildingColor = Color{0.72, 0.68, 0.62, 1.0}
	parkColor     = Color{0.25, 0.55, 0.25, 1.0}
	trunkColor    = Color{0.35, 0.25, 0.15, 1.0}
	crownColor    = Color{0.15, 0.45, 0.15, 1.0}
)
