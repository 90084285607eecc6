// Package osmmap parses OSM extracts into typed in-memory entities.
// Parsing is purely structural: no geometry is computed here.
package osmmap

import "fmt"

// Node is a single OSM node. Immutable after parse.
type Node struct {
	ID   int64
	Lat  float64
	Lon  float64
	Ele  float64 // from an ele tag, 0 when absent
	Tags map[string]string
}

// Way is an ordered sequence of node references with tags.
// A way whose first and last reference coincide denotes a closed ring.
type Way struct {
	ID       int64
	NodeRefs []int64
	Tags     map[string]string
}

// IsClosed reports whether the way forms a closed ring.
func (w *Way) IsClosed() bool {
	return len(w.NodeRefs) >= 3 && w.NodeRefs[0] == w.NodeRefs[len(w.NodeRefs)-1]
}

// MemberType identifies the kind of entity a relation member references.
type MemberType string

const (
	MemberNode     MemberType = "node"
	MemberWay      MemberType = "way"
	MemberRelation MemberType = "relation"
)

// Member is a single relation member reference.
type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

// Relation is an ordered member list with tags. Only multipolygon
// relations are consumed downstream; other member kinds are ignored.
type Relation struct {
	ID      int64
	Members []Member
	Tags    map[string]string
}

// Extract holds the parsed contents of one map extract. Slices preserve
// source file order; the maps exist for reference lookups only and must
// never drive output ordering.
type Extract struct {
	NodeOrder []int64
	Nodes     map[int64]*Node
	Ways      []*Way
	Relations []*Relation

	// KnownBounds is set by readers that track the bounding box while
	// streaming and keep only referenced nodes in memory. When present
	// it covers every node in the source file, not just the kept ones.
	KnownBounds *Bounds
}

// Bounds is the geodetic bounding box of an extract's nodes.
type Bounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// ErrNoNodes is returned when an extract contains no nodes at all, which
// makes every downstream stage impossible.
var ErrNoNodes = fmt.Errorf("extract contains no nodes")

// ComputeBounds returns the bounding box over all nodes in source order.
func (e *Extract) ComputeBounds() (Bounds, error) {
	if e.KnownBounds != nil {
		return *e.KnownBounds, nil
	}
	if len(e.NodeOrder) == 0 {
		return Bounds{}, ErrNoNodes
	}
	first := e.Nodes[e.NodeOrder[0]]
	b := Bounds{MinLat: first.Lat, MinLon: first.Lon, MaxLat: first.Lat, MaxLon: first.Lon}
	for _, id := range e.NodeOrder[1:] {
		n := e.Nodes[id]
		if n.Lat < b.MinLat {
			b.MinLat = n.Lat
		}
		if n.Lat > b.MaxLat {
			b.MaxLat = n.Lat
		}
		if n.Lon < b.MinLon {
			b.MinLon = n.Lon
		}
		if n.Lon > b.MaxLon {
			b.MaxLon = n.Lon
		}
	}
	return b, nil
}

// WayCoords resolves a way's node references to nodes, in order.
// Missing references are reported via the second return value.
func (e *Extract) WayCoords(w *Way) ([]*Node, int) {
	coords := make([]*Node, 0, len(w.NodeRefs))
	missing := 0
	for _, ref := range w.NodeRefs {
		n, ok := e.Nodes[ref]
		if !ok {
			missing++
			continue
		}
		coords = append(coords, n)
	}
	return coords, missing
}
