package footprint

import (
	"math"
	"testing"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

func TestResolveHeight(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name string
		tags map[string]string
		want float64
	}{
		{"height tag", map[string]string{"height": "9"}, 9.0},
		{"height with unit", map[string]string{"height": "15 m"}, 15.0},
		{"height overrides levels", map[string]string{"height": "9", "building:levels": "10"}, 9.0},
		{"too-low height falls through", map[string]string{"height": "1.5"}, 12.0},
		{"levels", map[string]string{"building:levels": "5"}, 16.0},
		{"half level clamped", map[string]string{"building:levels": "0.5"}, 3.0},
		{"no tags", map[string]string{}, 12.0},
		{"garbage height", map[string]string{"height": "tall"}, 12.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveHeight(tt.tags, opts); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ResolveHeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

// squareExtract returns an extract with a roughly 70x110 m closed way.
func squareExtract(tags map[string]string) (*osmmap.Extract, *enu.Frame) {
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5200, Lon: 13.4010},
		3: {ID: 3, Lat: 52.5210, Lon: 13.4010},
		4: {ID: 4, Lat: 52.5210, Lon: 13.4000},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3, 4},
		Ways: []*osmmap.Way{
			{ID: 500, NodeRefs: []int64{1, 2, 3, 4, 1}, Tags: tags},
		},
	}
	return extract, enu.NewFrame(52.5205, 13.4005, 0)
}

func TestBuildBuilding(t *testing.T) {
	extract, frame := squareExtract(map[string]string{"building": "yes", "name": "Depot"})
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())

	if len(set.Buildings) != 1 {
		t.Fatalf("expected 1 building, got %d", len(set.Buildings))
	}
	b := set.Buildings[0]
	if b.WayID != 500 {
		t.Errorf("way ID = %d, want 500", b.WayID)
	}
	if b.Name == nil || *b.Name != "Depot" {
		t.Errorf("name = %v, want Depot", b.Name)
	}
	if b.Height != 12.0 {
		t.Errorf("height = %v, want default 12.0", b.Height)
	}
	if b.Area < 5000 || b.Area > 10000 {
		t.Errorf("area = %v, want roughly 70x110 m", b.Area)
	}
	// Ring is closed.
	first, last := b.Outer[0], b.Outer[len(b.Outer)-1]
	if first.East != last.East || first.North != last.North {
		t.Error("outer ring is not closed")
	}
}

func TestUnclosedWaySkipped(t *testing.T) {
	extract, frame := squareExtract(map[string]string{"building": "yes"})
	extract.Ways[0].NodeRefs = []int64{1, 2, 3, 4} // not closed
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Buildings) != 0 {
		t.Errorf("unclosed way should be skipped, got %d buildings", len(set.Buildings))
	}
}

func TestTinyFootprintSkipped(t *testing.T) {
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.52000000, Lon: 13.40000000},
		2: {ID: 2, Lat: 52.52000001, Lon: 13.40000000},
		3: {ID: 3, Lat: 52.52000001, Lon: 13.40000001},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3},
		Ways: []*osmmap.Way{
			{ID: 501, NodeRefs: []int64{1, 2, 3, 1}, Tags: map[string]string{"building": "yes"}},
		},
	}
	frame := enu.NewFrame(52.52, 13.40, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Buildings) != 0 {
		t.Errorf("sub-square-meter footprint should be skipped, got %d", len(set.Buildings))
	}
}

func TestSelfIntersectingRingSkipped(t *testing.T) {
	// Bowtie: 1-2-3-4 crosses itself.
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5210, Lon: 13.4010},
		3: {ID: 3, Lat: 52.5200, Lon: 13.4010},
		4: {ID: 4, Lat: 52.5210, Lon: 13.4000},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3, 4},
		Ways: []*osmmap.Way{
			{ID: 502, NodeRefs: []int64{1, 2, 3, 4, 1}, Tags: map[string]string{"building": "yes"}},
		},
	}
	frame := enu.NewFrame(52.5205, 13.4005, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Buildings) != 0 {
		t.Errorf("self-intersecting ring should be skipped, got %d", len(set.Buildings))
	}
}

func TestParkFromLanduse(t *testing.T) {
	extract, frame := squareExtract(map[string]string{"landuse": "grass"})
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Parks) != 1 {
		t.Fatalf("expected 1 park, got %d", len(set.Parks))
	}
	if set.Parks[0].WayID != 500 {
		t.Errorf("park way ID = %d, want 500", set.Parks[0].WayID)
	}
}

func TestMultipolygonBuilding(t *testing.T) {
	nodes := map[int64]*osmmap.Node{
		// Outer square.
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5200, Lon: 13.4010},
		3: {ID: 3, Lat: 52.5210, Lon: 13.4010},
		4: {ID: 4, Lat: 52.5210, Lon: 13.4000},
		// Inner courtyard.
		5: {ID: 5, Lat: 52.5203, Lon: 13.4003},
		6: {ID: 6, Lat: 52.5203, Lon: 13.4007},
		7: {ID: 7, Lat: 52.5207, Lon: 13.4007},
		8: {ID: 8, Lat: 52.5207, Lon: 13.4003},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3, 4, 5, 6, 7, 8},
		Ways: []*osmmap.Way{
			{ID: 600, NodeRefs: []int64{1, 2, 3, 4, 1}, Tags: map[string]string{}},
			{ID: 601, NodeRefs: []int64{5, 6, 7, 8, 5}, Tags: map[string]string{}},
		},
		Relations: []*osmmap.Relation{
			{ID: 700, Tags: map[string]string{
				"type": "multipolygon", "building": "yes", "building:levels": "3",
			}, Members: []osmmap.Member{
				{Type: osmmap.MemberWay, Ref: 600, Role: "outer"},
				{Type: osmmap.MemberWay, Ref: 601, Role: "inner"},
			}},
		},
	}
	frame := enu.NewFrame(52.5205, 13.4005, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())

	if len(set.Buildings) != 1 {
		t.Fatalf("expected 1 building from relation, got %d", len(set.Buildings))
	}
	b := set.Buildings[0]
	if b.RelationID != 700 || b.WayID != 0 {
		t.Errorf("building should be relation-sourced: %+v", b)
	}
	if len(b.Inners) != 1 {
		t.Errorf("expected 1 inner ring, got %d", len(b.Inners))
	}
	if math.Abs(b.Height-9.6) > 1e-9 {
		t.Errorf("height from 3 levels = %v, want 9.6", b.Height)
	}
}

func TestMultipolygonChainedOuter(t *testing.T) {
	// Outer ring split into two open member ways.
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5200, Lon: 13.4010},
		3: {ID: 3, Lat: 52.5210, Lon: 13.4010},
		4: {ID: 4, Lat: 52.5210, Lon: 13.4000},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3, 4},
		Ways: []*osmmap.Way{
			{ID: 610, NodeRefs: []int64{1, 2, 3}, Tags: map[string]string{}},
			{ID: 611, NodeRefs: []int64{3, 4, 1}, Tags: map[string]string{}},
		},
		Relations: []*osmmap.Relation{
			{ID: 710, Tags: map[string]string{
				"type": "multipolygon", "leisure": "park",
			}, Members: []osmmap.Member{
				{Type: osmmap.MemberWay, Ref: 610, Role: "outer"},
				{Type: osmmap.MemberWay, Ref: 611, Role: "outer"},
			}},
		},
	}
	frame := enu.NewFrame(52.5205, 13.4005, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Parks) != 1 {
		t.Fatalf("expected 1 park from chained outer ways, got %d", len(set.Parks))
	}
	if set.Parks[0].RelationID != 710 {
		t.Errorf("park relation ID = %d, want 710", set.Parks[0].RelationID)
	}
}

func TestRelationUsesClassifyOverride(t *testing.T) {
	// A classifier override that turns building relations into parks
	// must apply to multipolygons, not just ways.
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5200, Lon: 13.4010},
		3: {ID: 3, Lat: 52.5210, Lon: 13.4010},
		4: {ID: 4, Lat: 52.5210, Lon: 13.4000},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2, 3, 4},
		Ways: []*osmmap.Way{
			{ID: 620, NodeRefs: []int64{1, 2, 3, 4, 1}, Tags: map[string]string{}},
		},
		Relations: []*osmmap.Relation{
			{ID: 720, Tags: map[string]string{
				"type": "multipolygon", "building": "yes",
			}, Members: []osmmap.Member{
				{Type: osmmap.MemberWay, Ref: 620, Role: "outer"},
			}},
		},
	}
	frame := enu.NewFrame(52.5205, 13.4005, 0)

	opts := DefaultOptions()
	opts.Classify = func(tags map[string]string) osmmap.Class {
		if tags["building"] != "" {
			return osmmap.ClassPark
		}
		return osmmap.Classify(tags)
	}
	set := Build(extract, frame, &roadnet.Network{}, opts)

	if len(set.Buildings) != 0 {
		t.Errorf("override should suppress relation buildings, got %d", len(set.Buildings))
	}
	if len(set.Parks) != 1 {
		t.Fatalf("expected 1 park from reclassified relation, got %d", len(set.Parks))
	}
	if set.Parks[0].RelationID != 720 {
		t.Errorf("park relation ID = %d, want 720", set.Parks[0].RelationID)
	}
}

func TestRoadSidewalks(t *testing.T) {
	net := &roadnet.Network{Segments: []roadnet.Segment{
		{ID: 800, Width: 7.0, Sidewalk: "both", Centerline: []enu.Point{
			{East: 0, North: 0}, {East: 100, North: 0},
		}},
		{ID: 801, Width: 7.0, Sidewalk: "left", Centerline: []enu.Point{
			{East: 0, North: 0}, {East: 0, North: 100},
		}},
		{ID: 802, Width: 7.0, Centerline: []enu.Point{
			{East: 0, North: 0}, {East: 50, North: 50},
		}},
	}}

	set := &Set{}
	set.addRoadSidewalks(net, DefaultOptions())

	if len(set.Sidewalks) != 3 {
		t.Fatalf("expected 3 strips (both=2, left=1, none=0), got %d", len(set.Sidewalks))
	}

	// For the eastbound road, "left" is north of the centerline.
	left := set.Sidewalks[0]
	if left.Side != "left" {
		t.Fatalf("first strip should be left, got %s", left.Side)
	}
	wantOffset := 7.0/2 + 1.5/2
	if math.Abs(left.Path[0].North-wantOffset) > 1e-9 {
		t.Errorf("left strip offset = %v, want %v", left.Path[0].North, wantOffset)
	}
	right := set.Sidewalks[1]
	if math.Abs(right.Path[0].North+wantOffset) > 1e-9 {
		t.Errorf("right strip offset = %v, want %v", right.Path[0].North, -wantOffset)
	}
}

func TestTrees(t *testing.T) {
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000, Tags: map[string]string{"natural": "tree"}},
		2: {ID: 2, Lat: 52.5201, Lon: 13.4001},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2},
	}
	frame := enu.NewFrame(52.52, 13.40, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Trees) != 1 {
		t.Fatalf("expected 1 tree, got %d", len(set.Trees))
	}
	if set.Trees[0].NodeID != 1 {
		t.Errorf("tree node ID = %d, want 1", set.Trees[0].NodeID)
	}
}

func TestStandaloneFootway(t *testing.T) {
	nodes := map[int64]*osmmap.Node{
		1: {ID: 1, Lat: 52.5200, Lon: 13.4000},
		2: {ID: 2, Lat: 52.5200, Lon: 13.4010},
	}
	extract := &osmmap.Extract{
		Nodes:     nodes,
		NodeOrder: []int64{1, 2},
		Ways: []*osmmap.Way{
			{ID: 900, NodeRefs: []int64{1, 2}, Tags: map[string]string{"highway": "footway"}},
		},
	}
	frame := enu.NewFrame(52.52, 13.4005, 0)
	set := Build(extract, frame, &roadnet.Network{}, DefaultOptions())
	if len(set.Sidewalks) != 1 {
		t.Fatalf("expected 1 footway strip, got %d", len(set.Sidewalks))
	}
	sw := set.Sidewalks[0]
	if sw.SourceID != 900 || sw.Side != "" {
		t.Errorf("footway strip wrong: %+v", sw)
	}
	if sw.Width != 1.5 {
		t.Errorf("footway width = %v, want default 1.5", sw.Width)
	}
}
