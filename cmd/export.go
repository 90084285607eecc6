package cmd

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/metadata"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
	"github.com/umakossiooo/osm-city-pipeline/internal/parquetout"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

var exportParquet bool

var exportCmd = &cobra.Command{
	Use:   "export <input.osm | input.osm.gz | input.osm.pbf>",
	Short: "Export road metadata without building a world",
	Long: `Parse an extract and write only the simulator metadata:
roads.json and spawn_points.yaml. Useful when the world geometry is
already generated and only the metadata needs refreshing.`,
	Args: cobra.ExactArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Float64Var(&cfg.SpawnSpacing, "spawn-spacing", cfg.SpawnSpacing, "Meters between spawn points, 0 spawns at centerline vertices")
	exportCmd.Flags().Float64Var(&cfg.IntersectionTolerance, "intersection-tolerance", cfg.IntersectionTolerance, "Snap distance for intersection detection in meters")
	exportCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	exportCmd.Flags().BoolVar(&exportParquet, "parquet", false, "Also write roads.parquet")
}

func runExport(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	start := time.Now()

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		exitWithError("failed to create output directory", err)
	}

	parser := osmmap.NewParser()
	extract, err := parser.ParseFile(cmd.Context(), cfg.InputFile)
	if err != nil {
		exitWithError("failed to parse extract", err)
	}

	frame, err := enu.FrameFromExtract(extract)
	if err != nil {
		exitWithError("failed to establish projection frame", err)
	}

	net := roadnet.Extract(extract, frame, roadnet.Options{
		LaneWidth:             cfg.LaneWidth,
		MinWidth:              cfg.MinRoadWidth,
		IntersectionTolerance: cfg.IntersectionTolerance,
	})

	roadsPath := filepath.Join(cfg.OutputDir, "roads.json")
	if err := metadata.BuildRoadsDocument(net, frame).WriteFile(roadsPath); err != nil {
		exitWithError("failed to write roads file", err)
	}

	spawnDoc := metadata.BuildSpawnDocument(net, frame, cfg.SpawnSpacing)
	spawnPath := filepath.Join(cfg.OutputDir, "spawn_points.yaml")
	if err := spawnDoc.WriteFile(spawnPath); err != nil {
		exitWithError("failed to write spawn file", err)
	}

	if exportParquet {
		w, err := parquetout.NewRoadWriter(filepath.Join(cfg.OutputDir, "roads.parquet"), cfg.BatchSize)
		if err != nil {
			exitWithError("failed to create parquet writer", err)
		}
		if err := w.WriteNetwork(net, frame); err != nil {
			w.Close()
			exitWithError("parquet export failed", err)
		}
		if err := w.Close(); err != nil {
			exitWithError("parquet export failed", err)
		}
	}

	log.Info("Export complete",
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Int("roads", len(net.Segments)),
		zap.Int("spawn_points", spawnDoc.TotalSpawnPoints),
		zap.String("roads_file", roadsPath),
		zap.String("spawn_file", spawnPath))
}
