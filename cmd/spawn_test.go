package cmd

import (
	"testing"

	"github.com/umakossiooo/osm-city-pipeline/internal/config"
)

func TestResolveReference(t *testing.T) {
	fromConfig := config.RefPoint{East: 100, North: 200, IsSet: true}

	tests := []struct {
		name       string
		flagValue  string
		fromConfig config.RefPoint
		wantEast   float64
		wantNorth  float64
		wantIsSet  bool
	}{
		{"flag wins over config", "10,20", fromConfig, 10, 20, true},
		{"config file fallback", "", fromConfig, 100, 200, true},
		{"neither set uses centroid", "", config.RefPoint{}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := resolveReference(tt.flagValue, tt.fromConfig)
			if err != nil {
				t.Fatalf("resolveReference() error: %v", err)
			}
			if ref.East != tt.wantEast || ref.North != tt.wantNorth || ref.IsSet != tt.wantIsSet {
				t.Errorf("resolveReference() = %+v, want east=%v north=%v isSet=%v",
					ref, tt.wantEast, tt.wantNorth, tt.wantIsSet)
			}
		})
	}
}

func TestResolveReferenceBadFlag(t *testing.T) {
	if _, err := resolveReference("10;20", config.RefPoint{}); err == nil {
		t.Error("expected error for malformed reference flag")
	}
}
