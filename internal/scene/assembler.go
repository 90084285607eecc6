package scene

import (
	"fmt"
	"math"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/footprint"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

const (
	// Road and sidewalk slabs are cut to pieces of at most this
	// length. Spans are divided equally, so every piece of a
	// subdivided span stays above half the maximum and no sliver
	// pieces appear.
	maxPieceLen = 100.0

	treeTrunkHeight = 3.0
	treeTrunkRadius = 0.18
	treeCrownRadius = 1.5
)

// Options tunes scene assembly.
type Options struct {
	WorldName     string
	MeshURI       string
	RoadThickness float64
	WalkThickness float64
	ParkThickness float64
}

// DefaultOptions returns the assembly defaults.
func DefaultOptions() Options {
	return Options{
		WorldName:     "osm_city",
		RoadThickness: 0.12,
		WalkThickness: 0.12,
		ParkThickness: 0.1,
	}
}

// Assemble builds a scene from the road network and footprints.
// Model names are stable across reruns: slabs are numbered in the
// order their source ways appear, footprint models carry their source
// element ID.
func Assemble(net *roadnet.Network, fps *footprint.Set, opts Options) *Scene {
	sc := &Scene{
		WorldName: opts.WorldName,
		MeshURI:   opts.MeshURI,
	}

	slabID := 0
	for _, seg := range net.Segments {
		for _, piece := range slicePath(seg.Centerline) {
			sc.RoadSlabs = append(sc.RoadSlabs, Slab{
				Name:   fmt.Sprintf("segment_%05d", slabID),
				Pose:   piece.pose(opts.RoadThickness / 2),
				Length: piece.length(),
				Width:  seg.Width,
				Height: opts.RoadThickness,
				Color:  roadColor,
			})
			slabID++
		}
	}

	walkID := 0
	for _, sw := range fps.Sidewalks {
		for _, piece := range slicePath(sw.Path) {
			sc.SidewalkSlabs = append(sc.SidewalkSlabs, Slab{
				Name:   fmt.Sprintf("sidewalk_%05d", walkID),
				Pose:   piece.pose(opts.WalkThickness / 2),
				Length: piece.length(),
				Width:  sw.Width,
				Height: opts.WalkThickness,
				Color:  sidewalkColor,
			})
			walkID++
		}
	}

	for _, b := range fps.Buildings {
		sc.Buildings = append(sc.Buildings, Prism{
			Name:   buildingName(b),
			Outer:  b.Outer,
			Inners: b.Inners,
			Height: b.Height,
			Color:  buildingColor,
		})
	}

	for _, p := range fps.Parks {
		sc.ParkPads = append(sc.ParkPads, Prism{
			Name:   parkName(p),
			Outer:  p.Outer,
			Height: opts.ParkThickness,
			Color:  parkColor,
		})
	}

	for _, t := range fps.Trees {
		sc.Trees = append(sc.Trees, TreeModel{
			Name:        fmt.Sprintf("tree_%d", t.NodeID),
			Position:    t.Position,
			TrunkHeight: treeTrunkHeight,
			TrunkRadius: treeTrunkRadius,
			CrownRadius: treeCrownRadius,
		})
	}

	return sc
}

func buildingName(b footprint.Building) string {
	if b.WayID != 0 {
		return fmt.Sprintf("building_%d", b.WayID)
	}
	return fmt.Sprintf("building_rel_%d", b.RelationID)
}

func parkName(p footprint.Park) string {
	if p.WayID != 0 {
		return fmt.Sprintf("park_%d", p.WayID)
	}
	return fmt.Sprintf("park_rel_%d", p.RelationID)
}

// piece is one straight slab cut from a polyline.
type piece struct {
	a, b enu.Point
}

func (p piece) length() float64 {
	return enu.Distance2D(p.a, p.b)
}

func (p piece) pose(z float64) Pose {
	return Pose{
		X:   (p.a.East + p.b.East) / 2,
		Y:   (p.a.North + p.b.North) / 2,
		Z:   z,
		Yaw: math.Atan2(p.b.North-p.a.North, p.b.East-p.a.East),
	}
}

// slicePath cuts a polyline into straight pieces, dividing each
// vertex span equally so no piece exceeds maxPieceLen.
func slicePath(path []enu.Point) []piece {
	var out []piece
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		span := enu.Distance2D(a, b)
		if span == 0 {
			continue
		}

		n := int(math.Ceil(span / maxPieceLen))
		if n < 1 {
			n = 1
		}

		for k := 0; k < n; k++ {
			t0 := float64(k) / float64(n)
			t1 := float64(k+1) / float64(n)
			out = append(out, piece{a: lerp(a, b, t0), b: lerp(a, b, t1)})
		}
	}
	return out
}

func lerp(a, b enu.Point, t float64) enu.Point {
	return enu.Point{
		East:  a.East + (b.East-a.East)*t,
		North: a.North + (b.North-a.North)*t,
		Up:    a.Up + (b.Up-a.Up)*t,
	}
}
