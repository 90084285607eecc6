package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/osmmap"
)

var projectInverse bool

var projectCmd = &cobra.Command{
	Use:   "project <input.osm | input.osm.gz | input.osm.pbf> <lat,lon | east,north>",
	Short: "Project a coordinate through an extract's local frame",
	Long: `Establish the projection frame of an extract and convert one
coordinate through it. The forward direction takes lat,lon degrees and
prints east,north meters; --inverse goes the other way.`,
	Args: cobra.ExactArgs(2),
	Run:  runProject,
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.Flags().BoolVar(&projectInverse, "inverse", false, "Convert east,north meters back to lat,lon degrees")
}

func runProject(cmd *cobra.Command, args []string) {
	parser := osmmap.NewParser()
	extract, err := parser.ParseFile(cmd.Context(), args[0])
	if err != nil {
		exitWithError("failed to parse extract", err)
	}

	frame, err := enu.FrameFromExtract(extract)
	if err != nil {
		exitWithError("failed to establish projection frame", err)
	}

	a, b, err := parsePair(args[1])
	if err != nil {
		exitWithError("invalid coordinate", err)
	}

	fmt.Printf("origin: lat=%.7f lon=%.7f\n", frame.OriginLat, frame.OriginLon)
	if projectInverse {
		lat, lon, _ := frame.Unproject(enu.Point{East: a, North: b})
		fmt.Printf("lat=%.7f lon=%.7f\n", lat, lon)
	} else {
		p := frame.Project(a, b, 0)
		fmt.Printf("east=%.3f north=%.3f\n", p.East, p.North)
	}
}

func parsePair(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two comma-separated values, got %q", s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
