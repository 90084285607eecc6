// Package nodeindex provides a flat, memory-mapped node coordinate
// store. Large extracts carry far more nodes than the ways reference,
// so coordinates are spilled to a sparse file instead of the heap and
// resolved lazily while ways are assembled.
package nodeindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

const (
	// Each entry is lat (int32) + lon (int32), fixed-point at 1e7.
	entrySize = 8
	// Node IDs above this are ignored. Planet-scale headroom.
	maxNodeID = 10_000_000_000
)

// FlatIndex stores node coordinates at offset = nodeID * 8 in a sparse
// memory-mapped file, giving O(1) lookup for any node ID. 1e7
// fixed-point keeps full OSM coordinate precision in 4 bytes per axis.
type FlatIndex struct {
	file *os.File
	data mmap.MMap
	size int64
}

// Create makes a new flat index backed by a sparse file at path.
func Create(path string) (*FlatIndex, error) {
	size := int64(maxNodeID) * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("nodeindex: failed to create flat file: %w", err)
	}

	// Sparse on Linux: address space is reserved, disk is used only
	// for entries actually written.
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("nodeindex: failed to size flat file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nodeindex: failed to map flat file: %w", err)
	}

	return &FlatIndex{file: f, data: data, size: size}, nil
}

// Open maps an existing flat index read-only.
func Open(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nodeindex: failed to open flat file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nodeindex: failed to stat flat file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(info.Size()), mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nodeindex: failed to map flat file: %w", err)
	}

	return &FlatIndex{file: f, data: data, size: info.Size()}, nil
}

// Put stores a node's coordinates. Out-of-range IDs are ignored.
// Concurrent Puts for distinct node IDs are safe: each writes to a
// unique offset.
func (x *FlatIndex) Put(nodeID int64, lat, lon float64) {
	if nodeID < 0 || nodeID >= maxNodeID {
		return
	}

	offset := nodeID * entrySize
	binary.LittleEndian.PutUint32(x.data[offset:], uint32(int32(lat*1e7)))
	binary.LittleEndian.PutUint32(x.data[offset+4:], uint32(int32(lon*1e7)))
}

// Get retrieves a node's coordinates. Returns ok=false for IDs never
// written. A node at exactly (0, 0) is indistinguishable from an unset
// entry; the gulf of Guinea loses a node and we accept that.
func (x *FlatIndex) Get(nodeID int64) (lat, lon float64, ok bool) {
	if nodeID < 0 || nodeID >= maxNodeID {
		return 0, 0, false
	}

	offset := nodeID * entrySize
	if offset+entrySize > x.size {
		return 0, 0, false
	}

	latInt := int32(binary.LittleEndian.Uint32(x.data[offset:]))
	lonInt := int32(binary.LittleEndian.Uint32(x.data[offset+4:]))
	if latInt == 0 && lonInt == 0 {
		return 0, 0, false
	}

	return float64(latInt) / 1e7, float64(lonInt) / 1e7, true
}

// Sync flushes written entries to disk.
func (x *FlatIndex) Sync() error {
	return x.data.Flush()
}

// Close unmaps and closes the underlying file. The file itself is left
// on disk; callers own its lifetime.
func (x *FlatIndex) Close() error {
	if err := x.data.Unmap(); err != nil {
		x.file.Close()
		return err
	}
	return x.file.Close()
}
