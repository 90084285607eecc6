package main

import (
	"os"

	"github.com/umakossiooo/osm-city-pipeline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
