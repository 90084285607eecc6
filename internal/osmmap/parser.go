package osmmap

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
)

// Stats holds parsing statistics
type Stats struct {
	Nodes       int64
	Ways        int64
	Relations   int64
	DroppedWays int64 // ways dropped for missing node references
	ShortWays   int64 // ways dropped for having fewer than 2 node refs
	BytesRead   int64
}

// Parser reads OSM extracts into an Extract value
type Parser struct {
	stats Stats
}

// NewParser creates a new extract parser
func NewParser() *Parser {
	return &Parser{}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// ParseFile parses an OSM extract. Plain XML, gzip-compressed XML and
// PBF inputs are supported, selected by filename suffix.
func (p *Parser) ParseFile(ctx context.Context, filename string) (*Extract, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("parser: failed to open extract: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		p.stats.BytesRead = info.Size()
	}

	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".pbf") {
		return p.parsePBF(ctx, f)
	}

	var reader io.Reader = f
	if strings.HasSuffix(lower, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("parser: failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return p.ParseReader(ctx, reader)
}

// ParseReader parses OSM XML data from a reader.
func (p *Parser) ParseReader(ctx context.Context, reader io.Reader) (*Extract, error) {
	extract := &Extract{
		Nodes: make(map[int64]*Node),
	}

	decoder := xml.NewDecoder(reader)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: XML parse error: %w", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "node":
			node, err := p.parseNode(decoder, se)
			if err != nil {
				return nil, err
			}
			extract.Nodes[node.ID] = node
			extract.NodeOrder = append(extract.NodeOrder, node.ID)
			p.stats.Nodes++
		case "way":
			way, err := p.parseWay(decoder, se)
			if err != nil {
				return nil, err
			}
			if len(way.NodeRefs) < 2 {
				p.stats.ShortWays++
				continue
			}
			extract.Ways = append(extract.Ways, way)
			p.stats.Ways++
		case "relation":
			rel, err := p.parseRelation(decoder, se)
			if err != nil {
				return nil, err
			}
			extract.Relations = append(extract.Relations, rel)
			p.stats.Relations++
		}
	}

	p.dropUnresolvedWays(extract)
	return extract, nil
}

// dropUnresolvedWays removes ways that reference nodes missing from the
// extract. Partial extracts are common, so each drop is a warning, not a
// failure.
func (p *Parser) dropUnresolvedWays(extract *Extract) {
	log := logger.Stage("parser")
	kept := extract.Ways[:0]
	for _, w := range extract.Ways {
		missing := 0
		for _, ref := range w.NodeRefs {
			if _, ok := extract.Nodes[ref]; !ok {
				missing++
			}
		}
		if missing > 0 {
			p.stats.DroppedWays++
			p.stats.Ways--
			log.Warn("Dropping way with unresolved node references",
				zap.Int64("way_id", w.ID),
				zap.Int("missing", missing),
				zap.Int("total", len(w.NodeRefs)))
			continue
		}
		kept = append(kept, w)
	}
	extract.Ways = kept
}

// parseNode parses a node element including its tags
func (p *Parser) parseNode(decoder *xml.Decoder, start xml.StartElement) (*Node, error) {
	node := &Node{}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			id, _ := strconv.ParseInt(attr.Value, 10, 64)
			node.ID = id
		case "lat":
			lat, _ := strconv.ParseFloat(attr.Value, 64)
			node.Lat = lat
		case "lon":
			lon, _ := strconv.ParseFloat(attr.Value, 64)
			node.Lon = lon
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("parser: node %d: %w", node.ID, err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			if se.Name.Local == "tag" {
				k, v := tagAttrs(se)
				if k != "" {
					if node.Tags == nil {
						node.Tags = make(map[string]string)
					}
					node.Tags[k] = v
					if k == "ele" {
						if ele, err := strconv.ParseFloat(v, 64); err == nil {
							node.Ele = ele
						}
					}
				}
			}
		case xml.EndElement:
			if se.Name.Local == "node" {
				return node, nil
			}
		}
	}
}

// parseWay parses a way element with nd refs and tags
func (p *Parser) parseWay(decoder *xml.Decoder, start xml.StartElement) (*Way, error) {
	way := &Way{
		NodeRefs: make([]int64, 0, 16),
		Tags:     make(map[string]string),
	}

	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			id, _ := strconv.ParseInt(attr.Value, 10, 64)
			way.ID = id
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("parser: way %d: %w", way.ID, err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "nd":
				for _, attr := range se.Attr {
					if attr.Name.Local == "ref" {
						ref, _ := strconv.ParseInt(attr.Value, 10, 64)
						way.NodeRefs = append(way.NodeRefs, ref)
					}
				}
			case "tag":
				k, v := tagAttrs(se)
				if k != "" {
					way.Tags[k] = v
				}
			}
		case xml.EndElement:
			if se.Name.Local == "way" {
				return way, nil
			}
		}
	}
}

// parseRelation parses a relation element with members and tags
func (p *Parser) parseRelation(decoder *xml.Decoder, start xml.StartElement) (*Relation, error) {
	rel := &Relation{
		Members: make([]Member, 0, 8),
		Tags:    make(map[string]string),
	}

	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			id, _ := strconv.ParseInt(attr.Value, 10, 64)
			rel.ID = id
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("parser: relation %d: %w", rel.ID, err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "member":
				member := Member{}
				for _, attr := range se.Attr {
					switch attr.Name.Local {
					case "type":
						member.Type = MemberType(attr.Value)
					case "ref":
						ref, _ := strconv.ParseInt(attr.Value, 10, 64)
						member.Ref = ref
					case "role":
						member.Role = attr.Value
					}
				}
				rel.Members = append(rel.Members, member)
			case "tag":
				k, v := tagAttrs(se)
				if k != "" {
					rel.Tags[k] = v
				}
			}
		case xml.EndElement:
			if se.Name.Local == "relation" {
				return rel, nil
			}
		}
	}
}

func tagAttrs(se xml.StartElement) (k, v string) {
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "k":
			k = attr.Value
		case "v":
			v = attr.Value
		}
	}
	return k, v
}
