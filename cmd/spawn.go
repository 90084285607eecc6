package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/umakossiooo/osm-city-pipeline/internal/config"
	"github.com/umakossiooo/osm-city-pipeline/internal/metadata"
	"github.com/umakossiooo/osm-city-pipeline/internal/spawn"
)

var (
	spawnFile      string
	spawnReference string
	spawnWayID     int64
)

var spawnCmd = &cobra.Command{
	Use:   "spawn <road name>",
	Short: "Find a spawn point on a named road",
	Long: `Look up a spawn point from a generated spawn_points.yaml.

Matching is a case-insensitive substring test in both directions, so
"main" finds "Main Street" and "Main Street North" finds "Main
Street". Among the matches the spawn nearest to the reference point is
returned; the default reference is the centroid of all spawn points.

Use --way-id to select by OSM way ID instead of by name.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSpawn,
}

func init() {
	rootCmd.AddCommand(spawnCmd)

	spawnCmd.Flags().StringVarP(&spawnFile, "spawn-file", "f", "", "Path to spawn_points.yaml (default <output-dir>/spawn_points.yaml)")
	spawnCmd.Flags().StringVar(&spawnReference, "reference", "", "Reference point as east,north in meters instead of the centroid")
	spawnCmd.Flags().Int64Var(&spawnWayID, "way-id", 0, "Select by OSM way ID instead of road name")
}

func runSpawn(cmd *cobra.Command, args []string) {
	if spawnWayID == 0 && len(args) == 0 {
		exitWithError("a road name or --way-id is required", nil)
	}

	path := spawnFile
	if path == "" {
		path = filepath.Join(cfg.OutputDir, "spawn_points.yaml")
	}

	sel, err := spawn.Load(path)
	if err != nil {
		exitWithError("failed to load spawn file", err)
	}

	ref, err := resolveReference(spawnReference, cfg.Reference)
	if err != nil {
		exitWithError("invalid reference point", err)
	}
	useCentroid := !ref.IsSet

	var sp *metadata.SpawnPoint
	if spawnWayID != 0 {
		sp, err = sel.ByWayID(spawnWayID, ref.East, ref.North, useCentroid)
	} else {
		sp, err = sel.ByName(args[0], ref.East, ref.North, useCentroid)
	}
	if err != nil {
		exitSpawnError(err)
	}

	name := "(unnamed)"
	if sp.RoadName != nil {
		name = *sp.RoadName
	}
	fmt.Printf("%s on %s (way %s, %s)\n", sp.Name, name, strconv.FormatInt(sp.RoadWayID, 10), sp.RoadClass)
	fmt.Printf("position: east=%g north=%g up=%g\n", sp.Position.East, sp.Position.North, sp.Position.Up)
	fmt.Printf("yaw: %g\n", sp.Yaw)
}

// resolveReference picks the lookup reference point. The --reference
// flag wins, then a reference from the config file; when neither is
// set the selector falls back to the centroid.
func resolveReference(flagValue string, fromConfig config.RefPoint) (*config.RefPoint, error) {
	ref, err := config.ParseRefPoint(flagValue)
	if err != nil {
		return nil, err
	}
	if !ref.IsSet && fromConfig.IsSet {
		r := fromConfig
		return &r, nil
	}
	return ref, nil
}

func exitSpawnError(err error) {
	var notFound *spawn.RoadNotFoundError
	if errors.As(err, &notFound) {
		exitWithError(notFound.Error(), nil)
	}
	exitWithError("spawn lookup failed", err)
}
