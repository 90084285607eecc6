// Package wkb encodes geometries as PostGIS extended WKB. The encoder
// reuses its buffer across calls so bulk loads do not churn the heap.
package wkb

import (
	"encoding/binary"
	"math"
)

const (
	wkbPoint      = 1
	wkbLineString = 2
	wkbPolygon    = 3

	// EWKB SRID presence flag.
	wkbSRIDFlag = 0x20000000
)

// SRID4326 is WGS84, the frame all loaded geometries use.
const SRID4326 = 4326

// Encoder encodes geometries as little-endian EWKB with an SRID.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates an encoder with a pre-allocated buffer and SRID
// 4326.
func NewEncoder(initialSize int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, initialSize),
		srid: SRID4326,
	}
}

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the current encoded geometry. The slice is only valid
// until the next Encode call.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodePoint encodes a single position.
func (e *Encoder) EncodePoint(lon, lat float64) []byte {
	e.Reset()
	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbPoint | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendFloat64(lon)
	e.appendFloat64(lat)
	return e.buf
}

// EncodeLineString encodes a polyline from flat [lon1, lat1, ...]
// coordinate pairs.
func (e *Encoder) EncodeLineString(coords []float64) []byte {
	e.Reset()
	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbLineString | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendUint32(uint32(len(coords) / 2))
	for i := 0; i+1 < len(coords); i += 2 {
		e.appendFloat64(coords[i])
		e.appendFloat64(coords[i+1])
	}
	return e.buf
}

// EncodePolygon encodes a polygon from one or more rings of flat
// coordinate pairs. The first ring is the shell, the rest are holes.
// Each ring must be closed (first pair repeated at the end).
func (e *Encoder) EncodePolygon(rings [][]float64) []byte {
	e.Reset()
	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbPolygon | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendUint32(uint32(len(rings)))
	for _, ring := range rings {
		e.appendUint32(uint32(len(ring) / 2))
		for i := 0; i+1 < len(ring); i += 2 {
			e.appendFloat64(ring[i])
			e.appendFloat64(ring[i+1])
		}
	}
	return e.buf
}

func (e *Encoder) appendUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) appendFloat64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}
