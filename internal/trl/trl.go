// Package trl reads and writes the binary trail geometry format.
//
// A .trl file is a little endian uint32 version, a uint32 map id and a
// packed sequence of float32 x,y,z nodes.
package trl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/OCAP2/markerpack/pkg/core"
)

const (
	// Version is the only version this package writes.
	Version uint32 = 2

	headerSize = 8
	nodeSize   = 12
)

var (
	ErrFileTooSmall   = errors.New("trl: file too small")
	ErrInvalidVersion = errors.New("trl: invalid version")
)

// InvalidVersionError reports a header version other than Version.
type InvalidVersionError struct {
	Version uint32
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("trl: invalid version %d", e.Version)
}

func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// Decode parses a complete .trl file. Versions below 2 are read as version 2.
// Trailing bytes that do not fill a whole node are ignored.
func Decode(data []byte) (core.TrailGeometry, error) {
	if len(data) <= headerSize {
		return core.TrailGeometry{}, ErrFileTooSmall
	}
	version := binary.LittleEndian.Uint32(data[0:4])
	if version < Version {
		version = Version
	}
	if version != Version {
		return core.TrailGeometry{}, &InvalidVersionError{Version: version}
	}
	body := data[headerSize:]

	nodes := make([]core.Vec3, len(body)/nodeSize)
	for i := range nodes {
		off := i * nodeSize
		nodes[i] = core.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(body[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(body[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(body[off+8:])),
		}
	}
	return core.TrailGeometry{
		Version: version,
		MapID:   binary.LittleEndian.Uint32(data[4:8]),
		Nodes:   nodes,
	}, nil
}

// Encode serializes g. The version field is always written as Version.
func Encode(g core.TrailGeometry) []byte {
	buf := make([]byte, headerSize+len(g.Nodes)*nodeSize)
	binary.LittleEndian.PutUint32(buf[0:4], Version)
	binary.LittleEndian.PutUint32(buf[4:8], g.MapID)
	off := headerSize
	for _, n := range g.Nodes {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(n[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(n[1]))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(n[2]))
		off += nodeSize
	}
	return buf
}

// DecodeReader reads r to EOF and decodes the result.
func DecodeReader(r io.Reader) (core.TrailGeometry, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return core.TrailGeometry{}, fmt.Errorf("trl: read: %w", err)
	}
	return Decode(buf.Bytes())
}

// EncodeWriter writes the encoded geometry to w.
func EncodeWriter(w io.Writer, g core.TrailGeometry) error {
	if _, err := w.Write(Encode(g)); err != nil {
		return fmt.Errorf("trl: write: %w", err)
	}
	return nil
}
