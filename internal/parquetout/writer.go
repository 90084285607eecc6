// Package parquetout writes the extracted road network as a Parquet
// dataset for offline analysis of large city batches.
package parquetout

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
	"github.com/umakossiooo/osm-city-pipeline/internal/roadnet"
	"github.com/umakossiooo/osm-city-pipeline/internal/wkb"
)

// RoadWriter writes road segments to a Parquet file. Geometries are
// geodetic EWKB so the file joins directly against PostGIS loads.
type RoadWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

// NewRoadWriter creates the writer. batchSize rows are buffered per
// record batch.
func NewRoadWriter(path string, batchSize int) (*RoadWriter, error) {
	if batchSize <= 0 {
		batchSize = 10000
	}

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "way_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "highway_type", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "lanes", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "width_m", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
	}, nil)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("parquetout: failed to create file: %w", err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parquetout: failed to create writer: %w", err)
	}

	return &RoadWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

// WriteNetwork writes every segment of the network.
func (w *RoadWriter) WriteNetwork(net *roadnet.Network, frame *enu.Frame) error {
	enc := wkb.NewEncoder(4096)
	coords := make([]float64, 0, 512)

	for _, seg := range net.Segments {
		coords = coords[:0]
		for _, p := range seg.Centerline {
			lat, lon, _ := frame.Unproject(p)
			coords = append(coords, lon, lat)
		}
		if err := w.write(seg, enc.EncodeLineString(coords)); err != nil {
			return err
		}
	}
	return nil
}

func (w *RoadWriter) write(seg roadnet.Segment, geomWKB []byte) error {
	w.builder.Field(0).(*array.Int64Builder).Append(seg.ID)
	if seg.Name != nil {
		w.builder.Field(1).(*array.StringBuilder).Append(*seg.Name)
	} else {
		w.builder.Field(1).(*array.StringBuilder).AppendNull()
	}
	w.builder.Field(2).(*array.StringBuilder).Append(seg.HighwayType)
	w.builder.Field(3).(*array.Int32Builder).Append(int32(seg.Lanes))
	w.builder.Field(4).(*array.Float64Builder).Append(seg.Width)
	w.builder.Field(5).(*array.BinaryBuilder).Append(geomWKB)

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *RoadWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.count = 0
	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("parquetout: batch write failed: %w", err)
	}
	return nil
}

// Close flushes pending rows and closes the file.
func (w *RoadWriter) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	w.builder.Release()
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("parquetout: close failed: %w", err)
	}
	return w.file.Close()
}
