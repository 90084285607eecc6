package osmmap

import (
	"context"
	"strings"
	"testing"
)

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="52.5200" lon="13.4050">
    <tag k="ele" v="34.5"/>
  </node>
  <node id="2" lat="52.5210" lon="13.4060"/>
  <node id="3" lat="52.5220" lon="13.4070"/>
  <node id="4" lat="52.5230" lon="13.4080">
    <tag k="natural" v="tree"/>
  </node>
  <way id="100">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Example Street"/>
  </way>
  <way id="101">
    <nd ref="1"/>
    <nd ref="999"/>
  </way>
  <way id="102">
    <nd ref="2"/>
  </way>
  <relation id="200">
    <member type="way" ref="100" role="outer"/>
    <tag k="type" v="multipolygon"/>
    <tag k="building" v="yes"/>
  </relation>
</osm>`

func TestParseReader(t *testing.T) {
	parser := NewParser()
	extract, err := parser.ParseReader(context.Background(), strings.NewReader(sampleOSM))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := parser.Stats()
	if stats.Nodes != 4 {
		t.Errorf("expected 4 nodes, got %d", stats.Nodes)
	}
	if stats.Ways != 1 {
		t.Errorf("expected 1 surviving way, got %d", stats.Ways)
	}
	if stats.DroppedWays != 1 {
		t.Errorf("expected 1 dropped way, got %d", stats.DroppedWays)
	}
	if stats.ShortWays != 1 {
		t.Errorf("expected 1 short way, got %d", stats.ShortWays)
	}
	if stats.Relations != 1 {
		t.Errorf("expected 1 relation, got %d", stats.Relations)
	}

	if len(extract.NodeOrder) != 4 {
		t.Fatalf("expected 4 ordered nodes, got %d", len(extract.NodeOrder))
	}
	if extract.NodeOrder[0] != 1 || extract.NodeOrder[3] != 4 {
		t.Errorf("node order not preserved: %v", extract.NodeOrder)
	}

	n1 := extract.Nodes[1]
	if n1.Lat != 52.5200 || n1.Lon != 13.4050 {
		t.Errorf("node 1 coordinates wrong: %v %v", n1.Lat, n1.Lon)
	}
	if n1.Ele != 34.5 {
		t.Errorf("expected ele 34.5, got %v", n1.Ele)
	}

	if len(extract.Ways) != 1 {
		t.Fatalf("expected 1 way, got %d", len(extract.Ways))
	}
	w := extract.Ways[0]
	if w.ID != 100 {
		t.Errorf("expected way 100, got %d", w.ID)
	}
	if w.Tags["name"] != "Example Street" {
		t.Errorf("way name tag missing: %v", w.Tags)
	}
	if len(w.NodeRefs) != 3 {
		t.Errorf("expected 3 node refs, got %d", len(w.NodeRefs))
	}

	r := extract.Relations[0]
	if r.ID != 200 || len(r.Members) != 1 {
		t.Fatalf("relation not parsed: %+v", r)
	}
	if r.Members[0].Type != MemberWay || r.Members[0].Ref != 100 || r.Members[0].Role != "outer" {
		t.Errorf("relation member wrong: %+v", r.Members[0])
	}
}

func TestParseReaderEmpty(t *testing.T) {
	parser := NewParser()
	extract, err := parser.ParseReader(context.Background(),
		strings.NewReader(`<?xml version="1.0"?><osm version="0.6"></osm>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := extract.ComputeBounds(); err != ErrNoNodes {
		t.Errorf("expected ErrNoNodes, got %v", err)
	}
}

func TestComputeBounds(t *testing.T) {
	parser := NewParser()
	extract, err := parser.ParseReader(context.Background(), strings.NewReader(sampleOSM))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := extract.ComputeBounds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.MinLat != 52.5200 || b.MaxLat != 52.5230 {
		t.Errorf("lat bounds wrong: %+v", b)
	}
	if b.MinLon != 13.4050 || b.MaxLon != 13.4080 {
		t.Errorf("lon bounds wrong: %+v", b)
	}
}

func TestWayIsClosed(t *testing.T) {
	tests := []struct {
		name string
		refs []int64
		want bool
	}{
		{"open", []int64{1, 2, 3}, false},
		{"closed", []int64{1, 2, 3, 1}, true},
		{"two points", []int64{1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Way{NodeRefs: tt.refs}
			if got := w.IsClosed(); got != tt.want {
				t.Errorf("IsClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}
