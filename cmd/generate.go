package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/metrics"
	"github.com/umakossiooo/osm-city-pipeline/internal/pipeline"
)

var (
	generateParquet bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <input.osm | input.osm.gz | input.osm.pbf> [more inputs...]",
	Short: "Generate a simulation world from a map extract",
	Long: `Run the full pipeline on one or more extracts.

For each input this produces, under the output directory:
  world/<name>.sdf       the simulation world
  roads.json             road centerlines in the local frame
  spawn_points.yaml      vehicle spawn points along every road
  config/map_config.yaml generation record

With multiple inputs each extract is processed independently into its
own subdirectory, up to --workers at a time.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&cfg.WorldName, "world-name", "n", cfg.WorldName, "World and SDF file name")
	generateCmd.Flags().StringVar(&cfg.MeshURI, "mesh-uri", "", "Include an external mesh model in the world")
	generateCmd.Flags().Float64Var(&cfg.SpawnSpacing, "spawn-spacing", cfg.SpawnSpacing, "Meters between spawn points, 0 spawns at centerline vertices")
	generateCmd.Flags().Float64Var(&cfg.IntersectionTolerance, "intersection-tolerance", cfg.IntersectionTolerance, "Snap distance for intersection detection in meters")
	generateCmd.Flags().BoolVar(&cfg.IntersectionVertices, "intersection-vertices", false, "Detect intersections at every centerline vertex")
	generateCmd.Flags().Float64Var(&cfg.SidewalkWidth, "sidewalk-width", cfg.SidewalkWidth, "Sidewalk strip width in meters")
	generateCmd.Flags().Float64Var(&cfg.LaneWidth, "lane-width", cfg.LaneWidth, "Assumed lane width in meters")
	generateCmd.Flags().StringVar(&cfg.StyleFile, "style", "", "YAML tag filter file")
	generateCmd.Flags().StringVar(&cfg.ClassifyFile, "classify", "", "Lua classification hook script")
	generateCmd.Flags().StringVar(&cfg.FlatNodesFile, "flat-nodes", "", "On-disk node index for large PBF extracts")
	generateCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	generateCmd.Flags().BoolVar(&generateParquet, "parquet", false, "Also write roads.parquet")
}

func runGenerate(cmd *cobra.Command, args []string) {
	log := logger.Get()

	cfg.InputFile = args[0]
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Verbose {
		collector := metrics.NewCollector(cfg.MetricsInterval, log)
		go collector.Start(ctx)
	}

	start := time.Now()

	if len(args) > 1 {
		log.Info("Starting batch generation", zap.Int("inputs", len(args)), zap.Int("workers", cfg.Workers))
		if err := pipeline.RunBatch(ctx, cfg, args); err != nil {
			exitWithError("batch generation failed", err)
		}
		log.Info("Batch complete", zap.Duration("duration", time.Since(start).Round(time.Second)))
		return
	}

	log.Info("Starting generation",
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputDir),
		zap.String("world", cfg.WorldName))

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		exitWithError("failed to prepare pipeline", err)
	}
	defer runner.Close()

	result, err := runner.Run(ctx)
	if err != nil {
		exitWithError("generation failed", err)
	}

	if generateParquet {
		if err := runner.ExportParquet(result); err != nil {
			exitWithError("parquet export failed", err)
		}
	}

	log.Info("Generation complete",
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Int("roads", result.Stats.Roads),
		zap.Int("intersections", result.Stats.Intersections),
		zap.Int("buildings", result.Stats.Buildings),
		zap.Int("spawn_points", result.Stats.SpawnPoints))
}
