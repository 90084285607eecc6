package metadata

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

// SpawnPoint is one vehicle spawn location on a road.
type SpawnPoint struct {
	Name      string   `yaml:"name"`
	RoadWayID int64    `yaml:"road_way_id"`
	RoadName  *string  `yaml:"road_name"`
	RoadClass string   `yaml:"road_class"`
	Position  Position `yaml:"position"`
	Yaw       float64  `yaml:"yaw"`
}

// SpawnDocument is the full spawn_points.yaml payload. NetworkCentroid
// is the mean over every road centerline vertex and serves as the
// default reference for spawn lookups.
type SpawnDocument struct {
	TotalSpawnPoints int              `yaml:"total_spawn_points"`
	ProjectionCenter ProjectionCenter `yaml:"projection_center"`
	NetworkCentroid  Position         `yaml:"network_centroid"`
	SpawnPoints      []SpawnPoint     `yaml:"spawn_points"`
}

// BuildSpawnDocument generates spawn points along every road segment.
// Each segment gets a spawn at its first vertex, one every spacing
// meters of arc length, and one at its last vertex. With spacing <= 0
// a spawn is placed at every centerline vertex instead, with the yaw
// averaged across the adjacent edges. Names carry a global counter in
// generation order.
func BuildSpawnDocument(net *roadnet.Network, frame *enu.Frame, spacing float64) *SpawnDocument {
	doc := &SpawnDocument{
		ProjectionCenter: ProjectionCenter{
			Latitude:  frame.OriginLat,
			Longitude: frame.OriginLon,
			Height:    frame.OriginHeight,
		},
	}
	if c, ok := net.Centroid(); ok {
		doc.NetworkCentroid = Position{
			East:  round6(c.East),
			North: round6(c.North),
			Up:    round6(c.Up),
		}
	}

	counter := 0
	add := func(seg roadnet.Segment, p enu.Point, yaw float64) {
		doc.SpawnPoints = append(doc.SpawnPoints, SpawnPoint{
			Name:      fmt.Sprintf("spawn_point_%d", counter),
			RoadWayID: seg.ID,
			RoadName:  seg.Name,
			RoadClass: seg.HighwayType,
			Position: Position{
				East:  round6(p.East),
				North: round6(p.North),
				Up:    round6(p.Up),
			},
			Yaw: round6(yaw),
		})
		counter++
	}

	for _, seg := range net.Segments {
		if spacing <= 0 {
			spawnAtVertices(seg, add)
		} else {
			spawnAlong(seg, spacing, add)
		}
	}

	doc.TotalSpawnPoints = len(doc.SpawnPoints)
	return doc
}

func spawnAlong(seg roadnet.Segment, spacing float64, add func(roadnet.Segment, enu.Point, float64)) {
	line := seg.Centerline
	add(seg, line[0], yawOf(line[0], line[1]))

	walked := 0.0
	next := spacing
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		edge := enu.Distance2D(a, b)
		if edge == 0 {
			continue
		}
		yaw := yawOf(a, b)
		for next < walked+edge {
			t := (next - walked) / edge
			add(seg, lerpPoint(a, b, t), yaw)
			next += spacing
		}
		walked += edge
	}

	last := line[len(line)-1]
	add(seg, last, yawOf(line[len(line)-2], last))
}

func spawnAtVertices(seg roadnet.Segment, add func(roadnet.Segment, enu.Point, float64)) {
	line := seg.Centerline
	for i, p := range line {
		var yaw float64
		switch {
		case i == 0:
			yaw = yawOf(line[0], line[1])
		case i == len(line)-1:
			yaw = yawOf(line[i-1], line[i])
		default:
			// Average the incoming and outgoing headings through the
			// unit tangent sum, which behaves at wrap-around angles.
			in := yawOf(line[i-1], line[i])
			out := yawOf(line[i], line[i+1])
			yaw = math.Atan2(math.Sin(in)+math.Sin(out), math.Cos(in)+math.Cos(out))
		}
		add(seg, p, yaw)
	}
}

func yawOf(a, b enu.Point) float64 {
	return math.Atan2(b.North-a.North, b.East-a.East)
}

func lerpPoint(a, b enu.Point, t float64) enu.Point {
	return enu.Point{
		East:  a.East + (b.East-a.East)*t,
		North: a.North + (b.North-a.North)*t,
		Up:    a.Up + (b.Up-a.Up)*t,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// WriteFile serializes the document as YAML.
func (d *SpawnDocument) WriteFile(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("metadata: spawn encode failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("metadata: failed to write spawn file: %w", err)
	}
	return nil
}

// LoadSpawnDocument reads a spawn document back from disk.
func LoadSpawnDocument(path string) (*SpawnDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to read spawn file: %w", err)
	}
	var doc SpawnDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metadata: spawn decode failed: %w", err)
	}
	return &doc, nil
}
