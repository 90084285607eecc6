// Package pipeline orchestrates a full generation run: parse the
// extract, establish the local frame, extract roads and footprints,
// assemble the world and export the simulator metadata.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/umakossiooo/osm-city-pipeline/internal/config"
	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/footprint"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/metadata"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
	"github.com/umakossiooo/osm-city-pipeline/internal/parquetout"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
	"github.com/umakossiooo/osm-city-pipeline/internal/scene"
	"github.com/umakossiooo/osm-city-pipeline/internal/style"
)

// Stats summarizes one generation run.
type Stats struct {
	Nodes         int64
	Ways          int64
	Relations     int64
	Roads         int
	Intersections int
	Buildings     int
	Parks         int
	Sidewalks     int
	Trees         int
	SpawnPoints   int
}

// Result holds the outcome of a run: the stats plus the artifacts
// downstream stages consume in-process.
type Result struct {
	Stats      Stats
	Frame      *enu.Frame
	Network    *roadnet.Network
	Footprints *footprint.Set
}

// Runner executes generation runs for one configuration.
type Runner struct {
	cfg *config.Config

	styleCfg *style.Config
	hook     *style.Runtime
}

// NewRunner prepares a runner, loading the style file and Lua hook if
// configured.
func NewRunner(cfg *config.Config) (*Runner, error) {
	r := &Runner{cfg: cfg, styleCfg: style.DefaultConfig()}

	if cfg.StyleFile != "" {
		sc, err := style.LoadConfig(cfg.StyleFile)
		if err != nil {
			return nil, err
		}
		r.styleCfg = sc
	}

	hookPath := cfg.ClassifyFile
	if hookPath == "" && r.styleCfg.ClassifyScript != "" {
		hookPath = filepath.Join(filepath.Dir(cfg.StyleFile), r.styleCfg.ClassifyScript)
	}
	if hookPath != "" {
		r.hook = style.NewRuntime()
		if err := r.hook.LoadFile(hookPath); err != nil {
			r.hook.Close()
			return nil, err
		}
	}

	return r, nil
}

// Close releases the Lua hook.
func (r *Runner) Close() {
	if r.hook != nil {
		r.hook.Close()
	}
}

// classifier builds the way classification function: built-in rules
// first, then the Lua hook override, then the per-class style filters.
func (r *Runner) classifier() func(tags map[string]string) osmmap.Class {
	log := logger.Stage("style")
	roadFilter := style.NewFilter(r.styleCfg.Roads)
	fpFilter := style.NewFilter(r.styleCfg.Footprints)

	return func(tags map[string]string) osmmap.Class {
		class := osmmap.Classify(tags)
		if r.hook != nil {
			if c, ok, err := r.hook.ClassifyWay(tags); err != nil {
				log.Warn("Lua classify hook failed", zap.Error(err))
			} else if ok {
				class = c
			}
		}
		switch class {
		case osmmap.ClassRoad:
			if !roadFilter.Match(tags) {
				return osmmap.ClassUnclassified
			}
		case osmmap.ClassBuilding, osmmap.ClassPark, osmmap.ClassSidewalk:
			if !fpFilter.Match(tags) {
				return osmmap.ClassUnclassified
			}
		}
		return class
	}
}

// Run executes the full pipeline for the configured input.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := logger.Stage("pipeline")
	timer := NewStageTimer()

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("pipeline: failed to create output directory: %w", err)
	}

	// Parse
	parser := osmmap.NewParser()
	var extract *osmmap.Extract
	var err error
	if r.cfg.FlatNodesFile != "" && strings.HasSuffix(strings.ToLower(r.cfg.InputFile), ".pbf") {
		extract, err = parser.ParseFileFlat(ctx, r.cfg.InputFile, r.cfg.FlatNodesFile)
	} else {
		extract, err = parser.ParseFile(ctx, r.cfg.InputFile)
	}
	if err != nil {
		return nil, err
	}
	pstats := parser.Stats()
	log.Info("Extract parsed",
		zap.Int64("nodes", pstats.Nodes),
		zap.Int64("ways", pstats.Ways),
		zap.Int64("relations", pstats.Relations),
		zap.Int64("dropped_ways", pstats.DroppedWays),
		zap.Duration("duration", timer.Mark("parse")))

	// Frame
	frame, err := enu.FrameFromExtract(extract)
	if err != nil {
		return nil, err
	}
	log.Info("Projection frame established",
		zap.Float64("origin_lat", frame.OriginLat),
		zap.Float64("origin_lon", frame.OriginLon))

	classify := r.classifier()

	// Roads
	roadOpts := roadnet.Options{
		LaneWidth:             r.cfg.LaneWidth,
		MinWidth:              r.cfg.MinRoadWidth,
		IntersectionTolerance: r.cfg.IntersectionTolerance,
		AllVertices:           r.cfg.IntersectionVertices,
		Classify:              classify,
	}
	net := roadnet.Extract(extract, frame, roadOpts)
	log.Info("Road network extracted",
		zap.Int("segments", len(net.Segments)),
		zap.Int("intersections", len(net.Intersections)),
		zap.Duration("duration", timer.Mark("roads")))

	// Footprints
	fpOpts := footprint.Options{
		DefaultHeight: r.cfg.Heights.Building,
		LevelHeight:   r.cfg.Heights.Level,
		MinHeight:     3.0,
		SidewalkWidth: r.cfg.SidewalkWidth,
		MinArea:       1.0,
		Classify:      classify,
	}
	fps := footprint.Build(extract, frame, net, fpOpts)
	log.Info("Footprints built",
		zap.Int("buildings", len(fps.Buildings)),
		zap.Int("parks", len(fps.Parks)),
		zap.Int("sidewalks", len(fps.Sidewalks)),
		zap.Int("trees", len(fps.Trees)),
		zap.Duration("duration", timer.Mark("footprints")))

	// Scene
	sceneOpts := scene.Options{
		WorldName:     r.cfg.WorldName,
		MeshURI:       r.cfg.MeshURI,
		RoadThickness: r.cfg.Heights.Road,
		WalkThickness: r.cfg.Heights.Sidewalk,
		ParkThickness: r.cfg.Heights.Park,
	}
	sc := scene.Assemble(net, fps, sceneOpts)

	worldDir := filepath.Join(r.cfg.OutputDir, "world")
	if err := os.MkdirAll(worldDir, 0755); err != nil {
		return nil, fmt.Errorf("pipeline: failed to create world directory: %w", err)
	}
	worldPath := filepath.Join(worldDir, r.cfg.WorldName+".sdf")
	if err := sc.WriteSDFFile(worldPath); err != nil {
		return nil, err
	}
	log.Info("World written",
		zap.String("path", worldPath),
		zap.Duration("duration", timer.Mark("scene")))

	// Metadata
	roadsDoc := metadata.BuildRoadsDocument(net, frame)
	if err := roadsDoc.WriteFile(filepath.Join(r.cfg.OutputDir, "roads.json")); err != nil {
		return nil, err
	}
	spawnDoc := metadata.BuildSpawnDocument(net, frame, r.cfg.SpawnSpacing)
	if err := spawnDoc.WriteFile(filepath.Join(r.cfg.OutputDir, "spawn_points.yaml")); err != nil {
		return nil, err
	}
	log.Info("Metadata exported",
		zap.Int("spawn_points", spawnDoc.TotalSpawnPoints),
		zap.Duration("duration", timer.Mark("metadata")))

	if err := r.writeMapConfig(frame, net, fps, spawnDoc); err != nil {
		return nil, err
	}

	result := &Result{
		Stats: Stats{
			Nodes:         pstats.Nodes,
			Ways:          pstats.Ways,
			Relations:     pstats.Relations,
			Roads:         len(net.Segments),
			Intersections: len(net.Intersections),
			Buildings:     len(fps.Buildings),
			Parks:         len(fps.Parks),
			Sidewalks:     len(fps.Sidewalks),
			Trees:         len(fps.Trees),
			SpawnPoints:   spawnDoc.TotalSpawnPoints,
		},
		Frame:      frame,
		Network:    net,
		Footprints: fps,
	}
	log.Info("Run complete", zap.String("stages", timer.Summary()))
	return result, nil
}

// ExportParquet writes the road network Parquet dataset next to the
// other artifacts.
func (r *Runner) ExportParquet(result *Result) error {
	path := filepath.Join(r.cfg.OutputDir, "roads.parquet")
	w, err := parquetout.NewRoadWriter(path, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if err := w.WriteNetwork(result.Network, result.Frame); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Stage("pipeline").Info("Parquet written", zap.String("path", path))
	return nil
}

// mapConfig is the generation record written beside the artifacts, so
// a world directory is self-describing.
type mapConfig struct {
	WorldName        string                    `yaml:"world_name"`
	InputFile        string                    `yaml:"input_file"`
	ProjectionCenter metadata.ProjectionCenter `yaml:"projection_center"`
	SpawnSpacing     float64                   `yaml:"spawn_spacing"`
	Counts           mapCounts                 `yaml:"counts"`
}

type mapCounts struct {
	Roads         int `yaml:"roads"`
	Intersections int `yaml:"intersections"`
	Buildings     int `yaml:"buildings"`
	Parks         int `yaml:"parks"`
	Sidewalks     int `yaml:"sidewalks"`
	Trees         int `yaml:"trees"`
	SpawnPoints   int `yaml:"spawn_points"`
}

func (r *Runner) writeMapConfig(frame *enu.Frame, net *roadnet.Network, fps *footprint.Set, spawnDoc *metadata.SpawnDocument) error {
	cfgDir := filepath.Join(r.cfg.OutputDir, "config")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("pipeline: failed to create config directory: %w", err)
	}

	mc := mapConfig{
		WorldName: r.cfg.WorldName,
		InputFile: filepath.Base(r.cfg.InputFile),
		ProjectionCenter: metadata.ProjectionCenter{
			Latitude:  frame.OriginLat,
			Longitude: frame.OriginLon,
			Height:    frame.OriginHeight,
		},
		SpawnSpacing: r.cfg.SpawnSpacing,
		Counts: mapCounts{
			Roads:         len(net.Segments),
			Intersections: len(net.Intersections),
			Buildings:     len(fps.Buildings),
			Parks:         len(fps.Parks),
			Sidewalks:     len(fps.Sidewalks),
			Trees:         len(fps.Trees),
			SpawnPoints:   spawnDoc.TotalSpawnPoints,
		},
	}

	data, err := yaml.Marshal(&mc)
	if err != nil {
		return fmt.Errorf("pipeline: map config encode failed: %w", err)
	}
	path := filepath.Join(cfgDir, "map_config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("pipeline: failed to write map config: %w", err)
	}
	return nil
}

// RunBatch generates one world per input file, in parallel, each into
// its own subdirectory of the output directory. Parallelism is whole
// runs; a single run stays sequential.
func RunBatch(ctx context.Context, cfg *config.Config, inputs []string) error {
	log := logger.Stage("pipeline")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, input := range inputs {
		input := input
		g.Go(func() error {
			sub := *cfg
			sub.InputFile = input
			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(filepath.Base(input)))
			base = strings.TrimSuffix(base, ".osm") // for .osm.gz inputs
			sub.OutputDir = filepath.Join(cfg.OutputDir, base)
			sub.WorldName = base
			if sub.FlatNodesFile != "" {
				sub.FlatNodesFile = filepath.Join(sub.OutputDir, filepath.Base(sub.FlatNodesFile))
			}

			runner, err := NewRunner(&sub)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			defer runner.Close()

			if _, err := runner.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			log.Info("Batch input complete", zap.String("input", input))
			return nil
		})
	}

	return g.Wait()
}
