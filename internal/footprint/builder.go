// Package footprint builds planar footprints in the local frame:
// building outlines with resolved heights, park areas, sidewalk strips
// and individual trees.
package footprint

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

// Building is a closed outline extruded to a resolved height.
type Building struct {
	WayID      int64 // 0 when sourced from a relation
	RelationID int64 // 0 when sourced from a way
	Name       *string
	Outer      []enu.Point
	Inners     [][]enu.Point
	Height     float64
	Area       float64
}

// Park is a closed green area rendered as a thin slab.
type Park struct {
	WayID      int64
	RelationID int64
	Name       *string
	Outer      []enu.Point
	Area       float64
}

// Sidewalk is a walking strip described by its center path and width.
// Strips come either from sidewalk tags on roads or from standalone
// footways.
type Sidewalk struct {
	SourceID int64  // road or footway way ID
	Side     string // "left", "right" or "" for standalone footways
	Path     []enu.Point
	Width    float64
}

// Tree is a single tree node.
type Tree struct {
	NodeID   int64
	Position enu.Point
}

// Set holds every footprint extracted from one map.
type Set struct {
	Buildings []Building
	Parks     []Park
	Sidewalks []Sidewalk
	Trees     []Tree
}

// Options tunes footprint construction.
type Options struct {
	DefaultHeight float64 // building fallback, meters
	LevelHeight   float64 // meters per building level
	MinHeight     float64 // clamp for level-derived heights
	SidewalkWidth float64
	MinArea       float64 // footprints below this are dropped, m2
	// Classify overrides the built-in tag classification when set.
	Classify func(tags map[string]string) osmmap.Class
}

// DefaultOptions returns the construction defaults.
func DefaultOptions() Options {
	return Options{
		DefaultHeight: 12.0,
		LevelHeight:   3.2,
		MinHeight:     3.0,
		SidewalkWidth: 1.5,
		MinArea:       1.0,
	}
}

// Build extracts all footprints. Ways are processed in source order,
// then relations, so reruns produce identical sets.
func Build(e *osmmap.Extract, frame *enu.Frame, net *roadnet.Network, opts Options) *Set {
	log := logger.Stage("footprint")
	set := &Set{}

	classify := opts.Classify
	if classify == nil {
		classify = osmmap.Classify
	}

	relationWays := multipolygonMemberWays(e, classify)

	for _, w := range e.Ways {
		if relationWays[w.ID] {
			// Consumed as a multipolygon member; the relation carries
			// the tags that matter.
			continue
		}
		switch classify(w.Tags) {
		case osmmap.ClassBuilding:
			set.addBuildingWay(e, frame, w, opts, log)
		case osmmap.ClassPark:
			set.addParkWay(e, frame, w, opts, log)
		case osmmap.ClassSidewalk:
			set.addFootway(e, frame, w, opts, log)
		}
	}

	for _, r := range e.Relations {
		if r.Tags["type"] != "multipolygon" {
			continue
		}
		switch class := classify(r.Tags); class {
		case osmmap.ClassBuilding, osmmap.ClassPark:
			set.addMultipolygon(e, frame, r, class, opts, log)
		}
	}

	set.addRoadSidewalks(net, opts)

	for _, id := range e.NodeOrder {
		n := e.Nodes[id]
		if osmmap.IsTree(n.Tags) {
			set.Trees = append(set.Trees, Tree{NodeID: n.ID, Position: frame.ProjectNode(n)})
		}
	}

	return set
}

// ResolveHeight picks a building height from tags. A parseable height
// tag above 2 m wins; then building:levels times the per-level height,
// clamped from below; then the default.
func ResolveHeight(tags map[string]string, opts Options) float64 {
	if v, ok := tags["height"]; ok {
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "m"))
		if h, err := strconv.ParseFloat(s, 64); err == nil && h > 2 {
			return h
		}
	}
	if v, ok := tags["building:levels"]; ok {
		if levels, err := strconv.ParseFloat(v, 64); err == nil && levels > 0 {
			h := levels * opts.LevelHeight
			if h < opts.MinHeight {
				h = opts.MinHeight
			}
			return h
		}
	}
	return opts.DefaultHeight
}

func (s *Set) addBuildingWay(e *osmmap.Extract, frame *enu.Frame, w *osmmap.Way, opts Options, log *zap.Logger) {
	ring, area, ok := closedRing(e, frame, w, opts, log)
	if !ok {
		return
	}
	s.Buildings = append(s.Buildings, Building{
		WayID:  w.ID,
		Name:   nameOf(w.Tags),
		Outer:  ring,
		Height: ResolveHeight(w.Tags, opts),
		Area:   area,
	})
}

func (s *Set) addParkWay(e *osmmap.Extract, frame *enu.Frame, w *osmmap.Way, opts Options, log *zap.Logger) {
	ring, area, ok := closedRing(e, frame, w, opts, log)
	if !ok {
		return
	}
	s.Parks = append(s.Parks, Park{
		WayID: w.ID,
		Name:  nameOf(w.Tags),
		Outer: ring,
		Area:  area,
	})
}

// closedRing projects a way to a ring and validates it: closed, big
// enough, not self-intersecting.
func closedRing(e *osmmap.Extract, frame *enu.Frame, w *osmmap.Way, opts Options, log *zap.Logger) ([]enu.Point, float64, bool) {
	if !w.IsClosed() {
		log.Warn("Skipping unclosed footprint way", zap.Int64("way_id", w.ID))
		return nil, 0, false
	}
	nodes, missing := e.WayCoords(w)
	if missing > 0 {
		log.Warn("Footprint way has unresolved node references",
			zap.Int64("way_id", w.ID), zap.Int("missing", missing))
	}
	ring := projectRing(nodes, frame)
	if len(ring) < 4 {
		log.Warn("Skipping footprint with too few distinct points", zap.Int64("way_id", w.ID))
		return nil, 0, false
	}
	area := ringArea(ring)
	if area < opts.MinArea {
		log.Debug("Skipping tiny footprint",
			zap.Int64("way_id", w.ID), zap.Float64("area_m2", area))
		return nil, 0, false
	}
	if ringSelfIntersects(ring) {
		log.Warn("Skipping self-intersecting footprint", zap.Int64("way_id", w.ID))
		return nil, 0, false
	}
	return ring, area, true
}

// projectRing projects nodes into a closed ring with consecutive
// duplicates collapsed. The last point always equals the first.
func projectRing(nodes []*osmmap.Node, frame *enu.Frame) []enu.Point {
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
	if len(pts) >= 3 && (pts[0].East != pts[len(pts)-1].East || pts[0].North != pts[len(pts)-1].North) {
		pts = append(pts, pts[0])
	}
	return pts
}

func ringArea(ring []enu.Point) float64 {
	r := make(orb.Ring, len(ring))
	for i, p := range ring {
		r[i] = orb.Point{p.East, p.North}
	}
	return math.Abs(planar.Area(r))
}

// ringSelfIntersects checks every non-adjacent edge pair. Footprint
// rings are small, so the quadratic scan is fine.
func ringSelfIntersects(ring []enu.Point) bool {
	n := len(ring) - 1 // closed ring, last point repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent around the wrap
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d enu.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b enu.Point) float64 {
	return (a.East-o.East)*(b.North-o.North) - (a.North-o.North)*(b.East-o.East)
}

// multipolygonMemberWays collects way IDs consumed by building or park
// multipolygon relations, so they are not also emitted standalone.
func multipolygonMemberWays(e *osmmap.Extract, classify func(tags map[string]string) osmmap.Class) map[int64]bool {
	consumed := make(map[int64]bool)
	for _, r := range e.Relations {
		if r.Tags["type"] != "multipolygon" {
			continue
		}
		c := classify(r.Tags)
		if c != osmmap.ClassBuilding && c != osmmap.ClassPark {
			continue
		}
		for _, m := range r.Members {
			if m.Type == osmmap.MemberWay {
				consumed[m.Ref] = true
			}
		}
	}
	return consumed
}

// addMultipolygon assembles outer and inner rings from a relation's
// member ways. Member ways that do not close individually are chained
// by shared endpoints.
func (s *Set) addMultipolygon(e *osmmap.Extract, frame *enu.Frame, r *osmmap.Relation, class osmmap.Class, opts Options, log *zap.Logger) {
	wayByID := make(map[int64]*osmmap.Way, len(e.Ways))
	for _, w := range e.Ways {
		wayByID[w.ID] = w
	}

	var outerWays, innerWays []*osmmap.Way
	for _, m := range r.Members {
		if m.Type != osmmap.MemberWay {
			continue
		}
		w, ok := wayByID[m.Ref]
		if !ok {
			log.Warn("Multipolygon member way missing from extract",
				zap.Int64("relation_id", r.ID), zap.Int64("way_id", m.Ref))
			continue
		}
		switch m.Role {
		case "outer", "":
			outerWays = append(outerWays, w)
		case "inner":
			innerWays = append(innerWays, w)
		}
	}

	outers := assembleRings(e, frame, outerWays)
	if len(outers) == 0 {
		log.Warn("Multipolygon has no closed outer ring", zap.Int64("relation_id", r.ID))
		return
	}
	inners := assembleRings(e, frame, innerWays)

	for i, outer := range outers {
		area := ringArea(outer)
		if area < opts.MinArea || ringSelfIntersects(outer) {
			continue
		}
		// Only the first outer keeps the inner rings; nested
		// assignment of holes to outers is rare enough in city
		// extracts to not matter here.
		var holes [][]enu.Point
		if i == 0 {
			holes = inners
		}
		switch class {
		case osmmap.ClassBuilding:
			s.Buildings = append(s.Buildings, Building{
				RelationID: r.ID,
				Name:       nameOf(r.Tags),
				Outer:      outer,
				Inners:     holes,
				Height:     ResolveHeight(r.Tags, opts),
				Area:       area,
			})
		case osmmap.ClassPark:
			s.Parks = append(s.Parks, Park{
				RelationID: r.ID,
				Name:       nameOf(r.Tags),
				Outer:      outer,
				Area:       area,
			})
		}
	}
}

// assembleRings chains member ways into closed rings by matching
// endpoints, reversing ways as needed. Unclosable chains are dropped.
func assembleRings(e *osmmap.Extract, frame *enu.Frame, ways []*osmmap.Way) [][]enu.Point {
	used := make([]bool, len(ways))
	var rings [][]enu.Point

	for i := range ways {
		if used[i] {
			continue
		}
		used[i] = true
		refs := append([]int64(nil), ways[i].NodeRefs...)

		for refs[0] != refs[len(refs)-1] {
			extended := false
			for j := range ways {
				if used[j] {
					continue
				}
				next := ways[j].NodeRefs
				switch {
				case next[0] == refs[len(refs)-1]:
					refs = append(refs, next[1:]...)
				case next[len(next)-1] == refs[len(refs)-1]:
					for k := len(next) - 2; k >= 0; k-- {
						refs = append(refs, next[k])
					}
				default:
					continue
				}
				used[j] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}

		if refs[0] != refs[len(refs)-1] {
			continue
		}

		nodes := make([]*osmmap.Node, 0, len(refs))
		for _, ref := range refs {
			if n, ok := e.Nodes[ref]; ok {
				nodes = append(nodes, n)
			}
		}
		ring := projectRing(nodes, frame)
		if len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// addFootway emits a standalone footway as a sidewalk strip along its
// own centerline.
func (s *Set) addFootway(e *osmmap.Extract, frame *enu.Frame, w *osmmap.Way, opts Options, log *zap.Logger) {
	nodes, missing := e.WayCoords(w)
	if missing > 0 {
		log.Warn("Footway has unresolved node references",
			zap.Int64("way_id", w.ID), zap.Int("missing", missing))
	}
	path := make([]enu.Point, 0, len(nodes))
	for _, n := range nodes {
		path = append(path, frame.ProjectNode(n))
	}
	if len(path) < 2 {
		return
	}
	s.Sidewalks = append(s.Sidewalks, Sidewalk{
		SourceID: w.ID,
		Path:     path,
		Width:    opts.SidewalkWidth,
	})
}

// addRoadSidewalks derives strips from sidewalk tags on road segments,
// offset sideways from the centerline by half the road width plus half
// the strip width.
func (s *Set) addRoadSidewalks(net *roadnet.Network, opts Options) {
	if net == nil {
		return
	}
	for _, seg := range net.Segments {
		left, right := false, false
		switch seg.Sidewalk {
		case "both":
			left, right = true, true
		case "left":
			left = true
		case "right":
			right = true
		default:
			continue
		}
		offset := seg.Width/2 + opts.SidewalkWidth/2
		if left {
			s.Sidewalks = append(s.Sidewalks, Sidewalk{
				SourceID: seg.ID,
				Side:     "left",
				Path:     offsetPath(seg.Centerline, offset),
				Width:    opts.SidewalkWidth,
			})
		}
		if right {
			s.Sidewalks = append(s.Sidewalks, Sidewalk{
				SourceID: seg.ID,
				Side:     "right",
				Path:     offsetPath(seg.Centerline, -offset),
				Width:    opts.SidewalkWidth,
			})
		}
	}
}

// offsetPath shifts a polyline sideways by d meters. Each vertex moves
// along the average of its adjacent segment normals, which keeps the
// strip continuous through bends.
func offsetPath(path []enu.Point, d float64) []enu.Point {
	out := make([]enu.Point, len(path))
	for i := range path {
		var nx, ny float64
		if i > 0 {
			sx, sy := segNormal(path[i-1], path[i])
			nx += sx
			ny += sy
		}
		if i < len(path)-1 {
			sx, sy := segNormal(path[i], path[i+1])
			nx += sx
			ny += sy
		}
		l := math.Hypot(nx, ny)
		if l > 0 {
			nx /= l
			ny /= l
		}
		out[i] = enu.Point{
			East:  path[i].East + nx*d,
			North: path[i].North + ny*d,
			Up:    path[i].Up,
		}
	}
	return out
}

// segNormal is the left-hand unit normal of a segment.
func segNormal(a, b enu.Point) (float64, float64) {
	dx := b.East - a.East
	dy := b.North - a.North
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 0, 0
	}
	return -dy / l, dx / l
}

func nameOf(tags map[string]string) *string {
	if v, ok := tags["name"]; ok && v != "" {
		return &v
	}
	return nil
}
