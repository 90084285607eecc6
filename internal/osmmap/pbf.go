package osmmap

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/nodeindex"
)

// parsePBF reads a PBF extract fully into memory in a single pass.
// The osmpbf scanner decodes blocks in parallel but delivers objects
// in file order, so slice ordering matches the source.
func (p *Parser) parsePBF(ctx context.Context, f *os.File) (*Extract, error) {
	extract := &Extract{
		Nodes: make(map[int64]*Node),
	}

	scanner := osmpbf.New(ctx, f, runtime.NumCPU())
	defer scanner.Close()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			node := convertNode(o)
			extract.Nodes[node.ID] = node
			extract.NodeOrder = append(extract.NodeOrder, node.ID)
			p.stats.Nodes++
		case *osm.Way:
			way := convertWay(o)
			if len(way.NodeRefs) < 2 {
				p.stats.ShortWays++
				continue
			}
			extract.Ways = append(extract.Ways, way)
			p.stats.Ways++
		case *osm.Relation:
			extract.Relations = append(extract.Relations, convertRelation(o))
			p.stats.Relations++
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parser: PBF scan error: %w", err)
	}

	p.dropUnresolvedWays(extract)
	return extract, nil
}

// ParseFileFlat reads a PBF extract in two passes using a flat
// memory-mapped coordinate index, keeping only way-referenced and
// tagged nodes on the heap. The bounding box is tracked over every
// node in pass 1 so the projection origin is identical to the
// in-memory path.
func (p *Parser) ParseFileFlat(ctx context.Context, filename, flatPath string) (*Extract, error) {
	log := logger.Stage("parser")

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("parser: failed to open extract: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		p.stats.BytesRead = info.Size()
	}

	extract := &Extract{
		Nodes: make(map[int64]*Node),
	}

	// Pass 1: spill coordinates to the flat index, keep tagged nodes.
	idx, err := nodeindex.Create(flatPath)
	if err != nil {
		return nil, err
	}

	var bounds Bounds
	seen := false

	scanner := osmpbf.New(ctx, f, runtime.NumCPU())
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			break
		}
		idx.Put(int64(n.ID), n.Lat, n.Lon)
		p.stats.Nodes++
		if !seen {
			bounds = Bounds{MinLat: n.Lat, MinLon: n.Lon, MaxLat: n.Lat, MaxLon: n.Lon}
			seen = true
		} else {
			if n.Lat < bounds.MinLat {
				bounds.MinLat = n.Lat
			}
			if n.Lat > bounds.MaxLat {
				bounds.MaxLat = n.Lat
			}
			if n.Lon < bounds.MinLon {
				bounds.MinLon = n.Lon
			}
			if n.Lon > bounds.MaxLon {
				bounds.MaxLon = n.Lon
			}
		}
		if len(n.Tags) > 0 {
			node := convertNode(n)
			extract.Nodes[node.ID] = node
			extract.NodeOrder = append(extract.NodeOrder, node.ID)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		scanner.Close()
		idx.Close()
		return nil, fmt.Errorf("parser: PBF scan error: %w", err)
	}
	scanner.Close()

	if err := idx.Sync(); err != nil {
		idx.Close()
		return nil, err
	}
	idx.Close()

	if seen {
		extract.KnownBounds = &bounds
	}
	log.Debug("Flat node pass complete", zap.Int64("nodes", p.stats.Nodes))

	// Pass 2: ways and relations, materializing referenced coordinates.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	rdx, err := nodeindex.Open(flatPath)
	if err != nil {
		return nil, err
	}
	defer rdx.Close()

	scanner = osmpbf.New(ctx, f, runtime.NumCPU())
	defer scanner.Close()
	scanner.SkipNodes = true

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			way := convertWay(o)
			if len(way.NodeRefs) < 2 {
				p.stats.ShortWays++
				continue
			}
			for _, ref := range way.NodeRefs {
				if _, ok := extract.Nodes[ref]; ok {
					continue
				}
				lat, lon, ok := rdx.Get(ref)
				if !ok {
					continue
				}
				extract.Nodes[ref] = &Node{ID: ref, Lat: lat, Lon: lon}
				extract.NodeOrder = append(extract.NodeOrder, ref)
			}
			extract.Ways = append(extract.Ways, way)
			p.stats.Ways++
		case *osm.Relation:
			extract.Relations = append(extract.Relations, convertRelation(o))
			p.stats.Relations++
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parser: PBF scan error: %w", err)
	}

	p.dropUnresolvedWays(extract)
	return extract, nil
}

func convertNode(n *osm.Node) *Node {
	node := &Node{
		ID:  int64(n.ID),
		Lat: n.Lat,
		Lon: n.Lon,
	}
	if len(n.Tags) > 0 {
		node.Tags = n.Tags.Map()
		if v, ok := node.Tags["ele"]; ok {
			if ele, err := strconv.ParseFloat(v, 64); err == nil {
				node.Ele = ele
			}
		}
	}
	return node
}

func convertWay(w *osm.Way) *Way {
	way := &Way{
		ID:       int64(w.ID),
		NodeRefs: make([]int64, len(w.Nodes)),
		Tags:     w.Tags.Map(),
	}
	for i, wn := range w.Nodes {
		way.NodeRefs[i] = int64(wn.ID)
	}
	if way.Tags == nil {
		way.Tags = make(map[string]string)
	}
	return way
}

func convertRelation(r *osm.Relation) *Relation {
	rel := &Relation{
		ID:      int64(r.ID),
		Members: make([]Member, 0, len(r.Members)),
		Tags:    r.Tags.Map(),
	}
	for _, m := range r.Members {
		rel.Members = append(rel.Members, Member{
			Type: MemberType(m.Type),
			Ref:  m.Ref,
			Role: m.Role,
		})
	}
	if rel.Tags == nil {
		rel.Tags = make(map[string]string)
	}
	return rel
}
