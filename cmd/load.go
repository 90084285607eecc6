package cmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/pgload"
	"github.com/umakossiooo/osm-city-pipeline/internal/pipeline"
)

var loadDropExisting bool

var loadCmd = &cobra.Command{
	Use:   "load <input.osm | input.osm.gz | input.osm.pbf>",
	Short: "Load a generated city into PostGIS",
	Long: `Run the extraction stages and publish the road network and
footprints into PostGIS tables (osm_city_roads, osm_city_footprints),
with the projection origin recorded in osm_city_frame. Geometries are
stored geodetic in SRID 4326.`,
	Args: cobra.ExactArgs(1),
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&loadDropExisting, "drop-existing", false, "Drop and recreate target tables")
	loadCmd.Flags().StringVar(&cfg.StyleFile, "style", "", "YAML tag filter file")
	loadCmd.Flags().StringVar(&cfg.ClassifyFile, "classify", "", "Lua classification hook script")
}

func runLoad(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	start := time.Now()

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		exitWithError("failed to prepare pipeline", err)
	}
	defer runner.Close()

	result, err := runner.Run(cmd.Context())
	if err != nil {
		exitWithError("generation failed", err)
	}

	loader, err := pgload.NewLoader(cfg, loadDropExisting)
	if err != nil {
		exitWithError("failed to connect to PostgreSQL", err)
	}
	defer loader.Close()

	stats, err := loader.Run(cmd.Context(), result.Frame, result.Network, result.Footprints)
	if err != nil {
		exitWithError("load failed", err)
	}

	log.Info("Load complete",
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Int64("roads", stats.Roads),
		zap.Int64("footprints", stats.Footprints))
}
