// Package pgload publishes a generated city into PostGIS so the road
// network and footprints can be inspected and joined with other
// geodata. Geometries are stored geodetic (SRID 4326), recovered from
// the local frame through the projection origin.
package pgload

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/umakossiooo/osm-city-pipeline/internal/config"
	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/footprint"
	"github.com/umakossiooo/osm-city-pipeline/internal/logger"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
	"github.com/umakossiooo/osm-city-pipeline/internal/wkb"
)

// Stats holds load statistics.
type Stats struct {
	Roads      int64
	Footprints int64
}

// Loader writes a generated city into PostGIS.
type Loader struct {
	cfg          *config.Config
	pool         *pgxpool.Pool
	dropExisting bool
}

// NewLoader connects to PostgreSQL.
func NewLoader(cfg *config.Config, dropExisting bool) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("pgload: failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgload: failed to connect: %w", err)
	}

	return &Loader{cfg: cfg, pool: pool, dropExisting: dropExisting}, nil
}

// Close releases connections.
func (l *Loader) Close() {
	l.pool.Close()
}

// Run loads the network and footprints.
func (l *Loader) Run(ctx context.Context, frame *enu.Frame, net *roadnet.Network, fps *footprint.Set) (*Stats, error) {
	log := logger.Stage("pgload")
	stats := &Stats{}

	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return nil, fmt.Errorf("pgload: failed to enable PostGIS: %w", err)
	}

	if err := l.createTables(ctx); err != nil {
		return nil, err
	}

	if err := l.writeFrame(ctx, frame); err != nil {
		return nil, err
	}

	roadCount, err := l.loadRoads(ctx, frame, net)
	if err != nil {
		return nil, err
	}
	stats.Roads = roadCount
	log.Info("Roads loaded", zap.Int64("rows", roadCount))

	fpCount, err := l.loadFootprints(ctx, frame, fps)
	if err != nil {
		return nil, err
	}
	stats.Footprints = fpCount
	log.Info("Footprints loaded", zap.Int64("rows", fpCount))

	if err := l.createIndexes(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}

func (l *Loader) createTables(ctx context.Context) error {
	if l.dropExisting {
		drop := `
			DROP TABLE IF EXISTS osm_city_roads CASCADE;
			DROP TABLE IF EXISTS osm_city_footprints CASCADE;
			DROP TABLE IF EXISTS osm_city_frame CASCADE`
		if _, err := l.pool.Exec(ctx, drop); err != nil {
			return fmt.Errorf("pgload: failed to drop tables: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS osm_city_frame (
			world_name TEXT PRIMARY KEY,
			origin GEOMETRY(Point, 4326) NOT NULL,
			origin_height DOUBLE PRECISION NOT NULL
		);
		CREATE TABLE IF NOT EXISTS osm_city_roads (
			way_id BIGINT NOT NULL,
			name TEXT,
			highway_type TEXT NOT NULL,
			lanes INT NOT NULL,
			width_m DOUBLE PRECISION NOT NULL,
			geom GEOMETRY(LineString, 4326) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS osm_city_footprints (
			source_id BIGINT NOT NULL,
			source_kind TEXT NOT NULL,
			class TEXT NOT NULL,
			name TEXT,
			height_m DOUBLE PRECISION,
			geom GEOMETRY(Polygon, 4326) NOT NULL
		)`
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgload: failed to create tables: %w", err)
	}

	if !l.dropExisting {
		if _, err := l.pool.Exec(ctx, "TRUNCATE osm_city_roads, osm_city_footprints"); err != nil {
			return fmt.Errorf("pgload: failed to truncate tables: %w", err)
		}
	}
	return nil
}

func (l *Loader) writeFrame(ctx context.Context, frame *enu.Frame) error {
	upsert := `
		INSERT INTO osm_city_frame (world_name, origin, origin_height)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4)
		ON CONFLICT (world_name) DO UPDATE
		SET origin = EXCLUDED.origin, origin_height = EXCLUDED.origin_height`
	_, err := l.pool.Exec(ctx, upsert,
		l.cfg.WorldName, frame.OriginLon, frame.OriginLat, frame.OriginHeight)
	if err != nil {
		return fmt.Errorf("pgload: failed to write frame record: %w", err)
	}
	return nil
}

// loadRoads bulk-copies road rows through a temp table, converting the
// EWKB column server-side.
func (l *Loader) loadRoads(ctx context.Context, frame *enu.Frame, net *roadnet.Network) (int64, error) {
	enc := wkb.NewEncoder(4096)
	coords := make([]float64, 0, 512)

	rows := make([][]interface{}, 0, len(net.Segments))
	for _, seg := range net.Segments {
		coords = coords[:0]
		for _, p := range seg.Centerline {
			lat, lon, _ := frame.Unproject(p)
			coords = append(coords, lon, lat)
		}
		geom := append([]byte(nil), enc.EncodeLineString(coords)...)

		var name interface{}
		if seg.Name != nil {
			name = *seg.Name
		}
		rows = append(rows, []interface{}{
			seg.ID, name, seg.HighwayType, seg.Lanes, seg.Width, geom,
		})
	}

	return l.copyRows(ctx, "osm_city_roads",
		[]string{"way_id", "name", "highway_type", "lanes", "width_m"},
		`CREATE TEMP TABLE city_load_tmp (
			way_id BIGINT, name TEXT, highway_type TEXT,
			lanes INT, width_m DOUBLE PRECISION, geom_wkb BYTEA
		) ON COMMIT DROP`,
		rows)
}

func (l *Loader) loadFootprints(ctx context.Context, frame *enu.Frame, fps *footprint.Set) (int64, error) {
	enc := wkb.NewEncoder(4096)

	var rows [][]interface{}
	addRow := func(sourceID int64, kind, class string, name *string, height interface{}, outer []enu.Point, inners [][]enu.Point) {
		rings := make([][]float64, 0, 1+len(inners))
		rings = append(rings, geodeticRing(frame, outer))
		for _, inner := range inners {
			rings = append(rings, geodeticRing(frame, inner))
		}
		geom := append([]byte(nil), enc.EncodePolygon(rings)...)

		var n interface{}
		if name != nil {
			n = *name
		}
		rows = append(rows, []interface{}{sourceID, kind, class, n, height, geom})
	}

	for _, b := range fps.Buildings {
		id, kind := b.WayID, "way"
		if id == 0 {
			id, kind = b.RelationID, "relation"
		}
		addRow(id, kind, "building", b.Name, b.Height, b.Outer, b.Inners)
	}
	for _, p := range fps.Parks {
		id, kind := p.WayID, "way"
		if id == 0 {
			id, kind = p.RelationID, "relation"
		}
		addRow(id, kind, "park", p.Name, nil, p.Outer, nil)
	}

	return l.copyRows(ctx, "osm_city_footprints",
		[]string{"source_id", "source_kind", "class", "name", "height_m"},
		`CREATE TEMP TABLE city_load_tmp (
			source_id BIGINT, source_kind TEXT, class TEXT,
			name TEXT, height_m DOUBLE PRECISION, geom_wkb BYTEA
		) ON COMMIT DROP`,
		rows)
}

// copyRows COPYs into a temp table and inserts into the target with
// ST_GeomFromWKB. The temp table keeps the COPY binary-clean while the
// geometry conversion stays in SQL.
func (l *Loader) copyRows(ctx context.Context, table string, plainCols []string, tempSQL string, rows [][]interface{}) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("pgload: failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("pgload: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, tempSQL); err != nil {
		return 0, fmt.Errorf("pgload: failed to create temp table: %w", err)
	}

	copyCols := append(append([]string(nil), plainCols...), "geom_wkb")
	count, err := tx.CopyFrom(ctx, pgx.Identifier{"city_load_tmp"}, copyCols, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("pgload: COPY failed: %w", err)
	}

	colList := ""
	for i, c := range plainCols {
		if i > 0 {
			colList += ", "
		}
		colList += c
	}
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (%s, geom)
		SELECT %s, ST_GeomFromWKB(geom_wkb)
		FROM city_load_tmp`, table, colList, colList)
	if _, err := tx.Exec(ctx, insertSQL); err != nil {
		return 0, fmt.Errorf("pgload: failed to insert from temp table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("pgload: failed to commit: %w", err)
	}
	return count, nil
}

func (l *Loader) createIndexes(ctx context.Context) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS osm_city_roads_geom_idx ON osm_city_roads USING GIST (geom)",
		"CREATE INDEX IF NOT EXISTS osm_city_roads_way_id_idx ON osm_city_roads (way_id)",
		"CREATE INDEX IF NOT EXISTS osm_city_footprints_geom_idx ON osm_city_footprints USING GIST (geom)",
		"ANALYZE osm_city_roads",
		"ANALYZE osm_city_footprints",
	}
	for _, stmt := range stmts {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgload: %q failed: %w", stmt, err)
		}
	}
	return nil
}

func geodeticRing(frame *enu.Frame, ring []enu.Point) []float64 {
	coords := make([]float64, 0, len(ring)*2)
	for _, p := range ring {
		lat, lon, _ := frame.Unproject(p)
		coords = append(coords, lon, lat)
	}
	return coords
}
