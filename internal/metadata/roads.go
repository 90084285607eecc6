// Package metadata exports simulator-facing descriptions of the
// generated world: the road network as JSON and spawn points as YAML.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
)

// ProjectionCenter records the geodetic anchor of the local frame.
type ProjectionCenter struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Height    float64 `json:"height" yaml:"height"`
}

// Position is a point in the local frame.
type Position struct {
	East  float64 `json:"east" yaml:"east"`
	North float64 `json:"north" yaml:"north"`
	Up    float64 `json:"up" yaml:"up"`
}

// Road is one network segment in the export document.
type Road struct {
	WayID         int64      `json:"way_id"`
	Name          *string    `json:"name"`
	HighwayType   string     `json:"highway_type"`
	Lanes         int        `json:"lanes"`
	CenterlineENU []Position `json:"centerline_enu"`
}

// RoadsDocument is the full roads.json payload.
type RoadsDocument struct {
	ProjectionCenter ProjectionCenter `json:"projection_center"`
	Roads            []Road           `json:"roads"`
}

// BuildRoadsDocument converts a road network into its export form.
// Road order matches segment order, so reruns serialize identically.
func BuildRoadsDocument(net *roadnet.Network, frame *enu.Frame) *RoadsDocument {
	doc := &RoadsDocument{
		ProjectionCenter: ProjectionCenter{
			Latitude:  frame.OriginLat,
			Longitude: frame.OriginLon,
			Height:    frame.OriginHeight,
		},
		Roads: make([]Road, 0, len(net.Segments)),
	}
	for _, seg := range net.Segments {
		road := Road{
			WayID:         seg.ID,
			Name:          seg.Name,
			HighwayType:   seg.HighwayType,
			Lanes:         seg.Lanes,
			CenterlineENU: make([]Position, 0, len(seg.Centerline)),
		}
		for _, p := range seg.Centerline {
			road.CenterlineENU = append(road.CenterlineENU, Position{
				East:  round6(p.East),
				North: round6(p.North),
				Up:    round6(p.Up),
			})
		}
		doc.Roads = append(doc.Roads, road)
	}
	return doc
}

// WriteFile serializes the document as indented JSON.
func (d *RoadsDocument) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: roads encode failed: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("metadata: failed to write roads file: %w", err)
	}
	return nil
}
