package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RefPoint is an explicit east/north reference point used by the spawn
// selector instead of the network centroid.
type RefPoint struct {
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
	IsSet bool    `yaml:"-"`
}

// ParseRefPoint parses a reference point string in format "east,north"
func ParseRefPoint(s string) (*RefPoint, error) {
	if s == "" {
		return &RefPoint{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("reference point must have 2 values: east,north")
	}

	var coords [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reference coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	return &RefPoint{East: coords[0], North: coords[1], IsSet: true}, nil
}

// Heights holds the per-class default extrusion heights applied when an
// entity carries no explicit height tags.
type Heights struct {
	Building float64 `yaml:"building"`
	Level    float64 `yaml:"level"`    // meters per building level
	Road     float64 `yaml:"road"`     // road slab thickness
	Sidewalk float64 `yaml:"sidewalk"` // sidewalk slab thickness
	Park     float64 `yaml:"park"`     // park slab thickness
}

// Config holds the global configuration for a pipeline run
type Config struct {
	// Input settings
	InputFile string `yaml:"-"`

	// Output settings
	OutputDir string `yaml:"output_dir"`
	WorldName string `yaml:"world_name"`
	MeshURI   string `yaml:"mesh_uri"` // external mesh asset instead of inline shapes

	// Geometry tuning
	Heights               Heights  `yaml:"heights"`
	SpawnSpacing          float64  `yaml:"spawn_spacing"`          // meters between spawn points; 0 = original vertices
	IntersectionTolerance float64  `yaml:"intersection_tolerance"` // endpoint grouping radius in meters
	IntersectionVertices  bool     `yaml:"intersection_vertices"`  // group all vertices, not just endpoints
	SidewalkWidth         float64  `yaml:"sidewalk_width"`
	LaneWidth             float64  `yaml:"lane_width"`
	MinRoadWidth          float64  `yaml:"min_road_width"`
	Reference             RefPoint `yaml:"reference"`

	// Classification settings
	StyleFile    string `yaml:"style_file"`    // YAML tag filter
	ClassifyFile string `yaml:"classify_file"` // Lua classification hook

	// Database settings (load subcommand)
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBSchema   string `yaml:"db_schema"`

	// Processing settings
	Workers       int    `yaml:"workers"` // parallel whole-extract runs in batch mode
	BatchSize     int    `yaml:"batch_size"`
	FlatNodesFile string `yaml:"flat_nodes"` // on-disk node index for large PBF extracts

	// Logging and metrics
	Verbose         bool          `yaml:"-"`
	LogFile         string        `yaml:"-"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "./city_out",
		WorldName: "osm_city",
		Heights: Heights{
			Building: 12.0,
			Level:    3.2,
			Road:     0.12,
			Sidewalk: 0.12,
			Park:     0.1,
		},
		SpawnSpacing:          10.0,
		IntersectionTolerance: 0.5,
		SidewalkWidth:         1.5,
		LaneWidth:             3.5,
		MinRoadWidth:          3.0,
		DBHost:                "localhost",
		DBPort:                5432,
		DBName:                "osm_city",
		DBUser:                "postgres",
		DBSchema:              "public",
		Workers:               runtime.NumCPU(),
		BatchSize:             100000,
		MetricsInterval:       30 * time.Second,
	}
}

// LoadFile overlays settings from a YAML config file onto c. Flags the
// user passed explicitly are parsed before the overlay, so the caller
// restores them on top with RestoreFlagValues.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if c.Reference.East != 0 || c.Reference.North != 0 {
		c.Reference.IsSet = true
	}
	return nil
}

// flagFields maps CLI flag names to the config fields they bind to.
var flagFields = map[string]func(dst, src *Config){
	"output-dir":             func(d, s *Config) { d.OutputDir = s.OutputDir },
	"world-name":             func(d, s *Config) { d.WorldName = s.WorldName },
	"mesh-uri":               func(d, s *Config) { d.MeshURI = s.MeshURI },
	"spawn-spacing":          func(d, s *Config) { d.SpawnSpacing = s.SpawnSpacing },
	"intersection-tolerance": func(d, s *Config) { d.IntersectionTolerance = s.IntersectionTolerance },
	"intersection-vertices":  func(d, s *Config) { d.IntersectionVertices = s.IntersectionVertices },
	"sidewalk-width":         func(d, s *Config) { d.SidewalkWidth = s.SidewalkWidth },
	"lane-width":             func(d, s *Config) { d.LaneWidth = s.LaneWidth },
	"style":                  func(d, s *Config) { d.StyleFile = s.StyleFile },
	"classify":               func(d, s *Config) { d.ClassifyFile = s.ClassifyFile },
	"db-host":                func(d, s *Config) { d.DBHost = s.DBHost },
	"db-port":                func(d, s *Config) { d.DBPort = s.DBPort },
	"db-name":                func(d, s *Config) { d.DBName = s.DBName },
	"db-user":                func(d, s *Config) { d.DBUser = s.DBUser },
	"db-password":            func(d, s *Config) { d.DBPassword = s.DBPassword },
	"db-schema":              func(d, s *Config) { d.DBSchema = s.DBSchema },
	"workers":                func(d, s *Config) { d.Workers = s.Workers },
	"batch-size":             func(d, s *Config) { d.BatchSize = s.BatchSize },
	"flat-nodes":             func(d, s *Config) { d.FlatNodesFile = s.FlatNodesFile },
	"metrics-interval":       func(d, s *Config) { d.MetricsInterval = s.MetricsInterval },
}

// RestoreFlagValues copies back the fields of every flag the user
// passed explicitly, taken from a snapshot made before the file
// overlay. Explicit flags win over the config file.
func (c *Config) RestoreFlagValues(flagged *Config, changed func(name string) bool) {
	for name, restore := range flagFields {
		if changed(name) {
			restore(c, flagged)
		}
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.SpawnSpacing < 0 {
		return fmt.Errorf("spawn spacing must not be negative")
	}
	if c.IntersectionTolerance <= 0 {
		return fmt.Errorf("intersection tolerance must be positive")
	}
	if c.Heights.Building <= 0 || c.Heights.Level <= 0 {
		return fmt.Errorf("default heights must be positive")
	}
	return nil
}
