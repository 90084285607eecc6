package metadata

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

func testNetwork() (*roadnet.Network, *enu.Frame) {
	name := "Example Street"
	net := &roadnet.Network{Segments: []roadnet.Segment{
		{ID: 100, Name: &name, HighwayType: "residential", Lanes: 2,
			Centerline: []enu.Point{{East: 0, North: 0}, {East: 25, North: 0}}},
		{ID: 101, HighwayType: "service", Lanes: 1,
			Centerline: []enu.Point{{East: 0, North: 10}, {East: 0, North: 15}}},
	}}
	return net, enu.NewFrame(52.52, 13.405, 0)
}

func TestBuildSpawnDocument(t *testing.T) {
	net, frame := testNetwork()
	doc := BuildSpawnDocument(net, frame, 10.0)

	// Segment 100 (25 m): first, at 10 m, at 20 m, last. Segment 101
	// (5 m): first and last only.
	if doc.TotalSpawnPoints != 6 {
		t.Fatalf("expected 6 spawn points, got %d", doc.TotalSpawnPoints)
	}
	if len(doc.SpawnPoints) != doc.TotalSpawnPoints {
		t.Error("total does not match list length")
	}

	first := doc.SpawnPoints[0]
	if first.Name != "spawn_point_0" {
		t.Errorf("first name = %q", first.Name)
	}
	if first.RoadWayID != 100 {
		t.Errorf("first spawn way = %d", first.RoadWayID)
	}
	if first.RoadName == nil || *first.RoadName != "Example Street" {
		t.Errorf("first spawn road name = %v", first.RoadName)
	}
	if first.RoadClass != "residential" {
		t.Errorf("first spawn road class = %q", first.RoadClass)
	}
	if first.Position.East != 0 || first.Yaw != 0 {
		t.Errorf("first spawn should sit at the segment start heading east: %+v", first)
	}

	second := doc.SpawnPoints[1]
	if math.Abs(second.Position.East-10) > 1e-9 {
		t.Errorf("second spawn at east = %v, want 10", second.Position.East)
	}

	last100 := doc.SpawnPoints[3]
	if math.Abs(last100.Position.East-25) > 1e-9 {
		t.Errorf("segment end spawn at east = %v, want 25", last100.Position.East)
	}

	// Northbound segment has yaw pi/2, rounded to 1e-6.
	north := doc.SpawnPoints[4]
	if math.Abs(north.Yaw-1.570796) > 1e-9 {
		t.Errorf("northbound yaw = %v, want 1.570796", north.Yaw)
	}
	if north.RoadName != nil {
		t.Errorf("unnamed road should have nil name, got %v", *north.RoadName)
	}

	if doc.SpawnPoints[5].Name != "spawn_point_5" {
		t.Errorf("names should carry a global counter, got %q", doc.SpawnPoints[5].Name)
	}

	// Mean over the 4 centerline vertices (0,0) (25,0) (0,10) (0,15).
	if doc.NetworkCentroid.East != 6.25 || doc.NetworkCentroid.North != 6.25 {
		t.Errorf("network centroid = %+v, want (6.25, 6.25)", doc.NetworkCentroid)
	}
}

func TestSpawnAtVertices(t *testing.T) {
	net := &roadnet.Network{Segments: []roadnet.Segment{
		{ID: 1, Centerline: []enu.Point{
			{East: 0, North: 0}, {East: 10, North: 0}, {East: 10, North: 10},
		}},
	}}
	frame := enu.NewFrame(52.52, 13.405, 0)
	doc := BuildSpawnDocument(net, frame, 0)

	if doc.TotalSpawnPoints != 3 {
		t.Fatalf("expected a spawn per vertex, got %d", doc.TotalSpawnPoints)
	}
	// The corner vertex averages the east and north headings.
	corner := doc.SpawnPoints[1]
	if math.Abs(corner.Yaw-math.Round(math.Pi/4*1e6)/1e6) > 1e-9 {
		t.Errorf("corner yaw = %v, want pi/4", corner.Yaw)
	}
}

func TestSpawnRoundTripFile(t *testing.T) {
	net, frame := testNetwork()
	doc := BuildSpawnDocument(net, frame, 10.0)

	path := filepath.Join(t.TempDir(), "spawn_points.yaml")
	if err := doc.WriteFile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	loaded, err := LoadSpawnDocument(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.TotalSpawnPoints != doc.TotalSpawnPoints {
		t.Errorf("total changed across round trip: %d vs %d",
			loaded.TotalSpawnPoints, doc.TotalSpawnPoints)
	}
	if loaded.ProjectionCenter.Latitude != 52.52 {
		t.Errorf("projection center lost: %+v", loaded.ProjectionCenter)
	}
	if loaded.SpawnPoints[0].Name != "spawn_point_0" {
		t.Errorf("spawn names lost: %q", loaded.SpawnPoints[0].Name)
	}
	if loaded.NetworkCentroid != doc.NetworkCentroid {
		t.Errorf("network centroid lost: %+v vs %+v",
			loaded.NetworkCentroid, doc.NetworkCentroid)
	}
}

func TestSpawnDeterminism(t *testing.T) {
	net, frame := testNetwork()
	dir := t.TempDir()

	pathA := filepath.Join(dir, "a.yaml")
	pathB := filepath.Join(dir, "b.yaml")
	if err := BuildSpawnDocument(net, frame, 10.0).WriteFile(pathA); err != nil {
		t.Fatal(err)
	}
	if err := BuildSpawnDocument(net, frame, 10.0).WriteFile(pathB); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(pathA)
	b, _ := os.ReadFile(pathB)
	if string(a) != string(b) {
		t.Error("spawn files differ between identical runs")
	}
}
