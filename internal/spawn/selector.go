// Package spawn selects spawn points from a generated spawn document
// by road name or way ID.
package spawn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/umakossiooo/osm-city-pipeline/internal/metadata"
)

// maxSuggestions caps the street names listed in a not-found error.
const maxSuggestions = 20

// RoadNotFoundError reports a query that matched no spawn point, along
// with the street names that do exist.
type RoadNotFoundError struct {
	Query     string
	Available []string
}

func (e *RoadNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no road matches %q and the map has no named roads", e.Query)
	}
	return fmt.Sprintf("no road matches %q; named roads include: %s",
		e.Query, strings.Join(e.Available, ", "))
}

// Selector answers spawn queries against one spawn document.
type Selector struct {
	doc *metadata.SpawnDocument
}

// NewSelector wraps a loaded spawn document.
func NewSelector(doc *metadata.SpawnDocument) *Selector {
	return &Selector{doc: doc}
}

// Load reads a spawn document from disk and wraps it.
func Load(path string) (*Selector, error) {
	doc, err := metadata.LoadSpawnDocument(path)
	if err != nil {
		return nil, err
	}
	return NewSelector(doc), nil
}

// Centroid returns the network centroid recorded in the document.
// Documents written before the centroid was recorded fall back to the
// mean position over every spawn point. Returns false when the
// document is empty.
func (s *Selector) Centroid() (east, north float64, ok bool) {
	if len(s.doc.SpawnPoints) == 0 {
		return 0, 0, false
	}
	if c := s.doc.NetworkCentroid; c.East != 0 || c.North != 0 {
		return c.East, c.North, true
	}
	for _, sp := range s.doc.SpawnPoints {
		east += sp.Position.East
		north += sp.Position.North
	}
	n := float64(len(s.doc.SpawnPoints))
	return east / n, north / n, true
}

// ByName returns the matching spawn point nearest to the reference
// point. Matching is a case-insensitive substring test in both
// directions, so "main" finds "Main Street" and "Main Street North"
// finds "Main Street". Ties on distance go to the spawn generated
// first. When useCentroid is true the reference is replaced by the
// document centroid.
func (s *Selector) ByName(query string, refEast, refNorth float64, useCentroid bool) (*metadata.SpawnPoint, error) {
	if useCentroid {
		if e, n, ok := s.Centroid(); ok {
			refEast, refNorth = e, n
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var matches []int
	for i, sp := range s.doc.SpawnPoints {
		if sp.RoadName == nil {
			continue
		}
		name := strings.ToLower(*sp.RoadName)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return nil, &RoadNotFoundError{Query: query, Available: s.streetNames()}
	}
	return s.nearest(matches, refEast, refNorth), nil
}

// ByWayID returns the spawn point on the given way nearest to the
// reference point.
func (s *Selector) ByWayID(wayID int64, refEast, refNorth float64, useCentroid bool) (*metadata.SpawnPoint, error) {
	if useCentroid {
		if e, n, ok := s.Centroid(); ok {
			refEast, refNorth = e, n
		}
	}

	var matches []int
	for i, sp := range s.doc.SpawnPoints {
		if sp.RoadWayID == wayID {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return nil, &RoadNotFoundError{
			Query:     strconv.FormatInt(wayID, 10),
			Available: s.streetNames(),
		}
	}
	return s.nearest(matches, refEast, refNorth), nil
}

// nearest picks the match with the smallest squared distance to the
// reference. Document order breaks ties, which is generation order and
// therefore the lowest spawn counter.
func (s *Selector) nearest(matches []int, refEast, refNorth float64) *metadata.SpawnPoint {
	best := matches[0]
	bestDist := s.dist2(best, refEast, refNorth)
	for _, i := range matches[1:] {
		if d := s.dist2(i, refEast, refNorth); d < bestDist {
			best, bestDist = i, d
		}
	}
	return &s.doc.SpawnPoints[best]
}

func (s *Selector) dist2(i int, refEast, refNorth float64) float64 {
	p := s.doc.SpawnPoints[i].Position
	de := p.East - refEast
	dn := p.North - refNorth
	return de*de + dn*dn
}

// streetNames lists the distinct named streets in the document,
// sorted, capped at maxSuggestions.
func (s *Selector) streetNames() []string {
	seen := make(map[string]struct{})
	for _, sp := range s.doc.SpawnPoints {
		if sp.RoadName != nil {
			seen[*sp.RoadName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxSuggestions {
		names = names[:maxSuggestions]
	}
	return names
}
