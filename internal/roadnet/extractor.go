// Package roadnet extracts the drivable road network from a parsed
// extract: classified centerlines in the local frame plus the
// intersections where segments meet.
package roadnet

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
)

// Segment is one road way projected into the local frame.
type Segment struct {
	ID          int64   // source way ID
	Name        *string // nil when the way carries no name tag
	HighwayType string
	Lanes       int
	Width       float64 // meters, from tags or lane count
	Sidewalk    string  // raw sidewalk tag value, "" when absent
	Centerline  []enu.Point
}

// Intersection is a point where two or more segments share a vertex.
type Intersection struct {
	ID         int
	Position   enu.Point
	SegmentIDs []int64 // ascending
}

// Network is the extracted road network.
type Network struct {
	Segments      []Segment
	Intersections []Intersection
}

// Options tunes road extraction.
type Options struct {
	// LaneWidth is the assumed width of one lane in meters when the
	// way has no usable width tag.
	LaneWidth float64
	// MinWidth clamps tagged widths from below.
	MinWidth float64
	// IntersectionTolerance is the snap distance for grouping shared
	// vertices, meters.
	IntersectionTolerance float64
	// AllVertices detects intersections at every centerline vertex
	// instead of endpoints only.
	AllVertices bool
	// Classify overrides the built-in tag classification when set.
	Classify func(tags map[string]string) osmmap.Class
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{
		LaneWidth:             3.5,
		MinWidth:              3.0,
		IntersectionTolerance: 0.5,
	}
}

// Extract builds the road network from an extract. Segments appear in
// source way order; intersections in first-detection order.
func Extract(e *osmmap.Extract, frame *enu.Frame, opts Options) *Network {
	log := logger.Stage("roadnet")
	net := &Network{}

	classify := opts.Classify
	if classify == nil {
		classify = osmmap.Classify
	}

	for _, w := range e.Ways {
		if classify(w.Tags) != osmmap.ClassRoad {
			continue
		}

		nodes, missing := e.WayCoords(w)
		if missing > 0 {
			log.Warn("Road has unresolved node references",
				zap.Int64("way_id", w.ID), zap.Int("missing", missing))
		}

		centerline := projectDistinct(nodes, frame)
		if len(centerline) < 2 {
			log.Warn("Skipping degenerate road",
				zap.Int64("way_id", w.ID), zap.Int("distinct_points", len(centerline)))
			continue
		}

		net.Segments = append(net.Segments, Segment{
			ID:          w.ID,
			Name:        nameOf(w.Tags),
			HighwayType: w.Tags["highway"],
			Lanes:       lanesOf(w.Tags),
			Width:       widthOf(w.Tags, opts),
			Sidewalk:    w.Tags["sidewalk"],
			Centerline:  centerline,
		})
	}

	net.Intersections = detectIntersections(net.Segments, opts)
	return net
}

// projectDistinct projects nodes and collapses consecutive duplicates,
// so a centerline never contains zero-length steps.
func projectDistinct(nodes []*osmmap.Node, frame *enu.Frame) []enu.Point {
	pts := make([]enu.Point, 0, len(nodes))
	for _, n := range nodes {
		p := frame.ProjectNode(n)
		if len(pts) > 0 {
			last := pts[len(pts)-1]
			if last.East == p.East && last.North == p.North {
				continue
			}
		}
		pts = append(pts, p)
	}
	return pts
}

func nameOf(tags map[string]string) *string {
	if v, ok := tags["name"]; ok && v != "" {
		return &v
	}
	return nil
}

func lanesOf(tags map[string]string) int {
	lanes := 1
	if v, ok := tags["lanes"]; ok {
		if _, err := fmt.Sscanf(v, "%d", &lanes); err != nil || lanes < 1 {
			lanes = 1
		}
	}
	return lanes
}

func widthOf(tags map[string]string, opts Options) float64 {
	if v, ok := tags["width"]; ok {
		var w float64
		if _, err := fmt.Sscanf(v, "%f", &w); err == nil && w > 0 {
			if w < opts.MinWidth {
				return opts.MinWidth
			}
			return w
		}
	}
	return float64(lanesOf(tags)) * opts.LaneWidth
}

// detectIntersections groups segment vertices by a snapped grid key and
// reports every group shared by at least two distinct segments. Group
// order follows first detection; member IDs are sorted ascending; the
// reported position is the first vertex that landed in the group.
func detectIntersections(segments []Segment, opts Options) []Intersection {
	type group struct {
		position enu.Point
		ids      map[int64]struct{}
	}

	tol := opts.IntersectionTolerance
	if tol <= 0 {
		tol = 0.5
	}

	groups := make(map[[2]int64]*group)
	var order [][2]int64

	visit := func(segID int64, p enu.Point) {
		key := [2]int64{
			int64(math.Round(p.East / tol)),
			int64(math.Round(p.North / tol)),
		}
		g, ok := groups[key]
		if !ok {
			g = &group{position: p, ids: make(map[int64]struct{})}
			groups[key] = g
			order = append(order, key)
		}
		g.ids[segID] = struct{}{}
	}

	for _, s := range segments {
		if opts.AllVertices {
			for _, p := range s.Centerline {
				visit(s.ID, p)
			}
		} else {
			visit(s.ID, s.Centerline[0])
			visit(s.ID, s.Centerline[len(s.Centerline)-1])
		}
	}

	var out []Intersection
	for _, key := range order {
		g := groups[key]
		if len(g.ids) < 2 {
			continue
		}
		ids := make([]int64, 0, len(g.ids))
		for id := range g.ids {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out = append(out, Intersection{
			ID:         len(out),
			Position:   g.position,
			SegmentIDs: ids,
		})
	}
	return out
}

// Centroid is the mean of every centerline vertex across the network.
// Returns false when the network has no segments.
func (n *Network) Centroid() (enu.Point, bool) {
	var sum enu.Point
	count := 0
	for _, s := range n.Segments {
		for _, p := range s.Centerline {
			sum.East += p.East
			sum.North += p.North
			count++
		}
	}
	if count == 0 {
		return enu.Point{}, false
	}
	return enu.Point{East: sum.East / float64(count), North: sum.North / float64(count)}, true
}
