// Package export writes reconstructed meshes to STL.
//
// The binary layout is the de-facto standard: an 80-byte header, a
// little-endian uint32 triangle count, then 50 bytes per facet (normal,
// three vertices as float32 triples, a zero uint16 attribute).
package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scanmesh/internal/scan"
	"github.com/banshee-data/scanmesh/internal/scan/l5mesh"
	"github.com/banshee-data/scanmesh/internal/version"
)

// Format selects the STL encoding.
type Format string

const (
	Binary Format = "binary"
	ASCII  Format = "ascii"
)

// ParseFormat accepts "binary" or "ascii"; empty means binary.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", Binary:
		return Binary, nil
	case ASCII:
		return ASCII, nil
	}
	return "", fmt.Errorf("%w: unknown stl format %q", scan.ErrInvalidConfig, s)
}

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	if f == ASCII {
		return "model/stl; charset=utf-8"
	}
	return "model/stl"
}

const (
	headerSize = 80
	facetSize  = 4*3*4 + 2
	solidName  = "scanmesh"
)

// DefaultHeader is written when no header text is supplied.
func DefaultHeader() string {
	return solidName + " " + version.Version
}

// Write encodes m in the requested format.
func Write(w io.Writer, m *scan.Mesh, f Format) error {
	switch f {
	case Binary, "":
		return WriteBinarySTL(w, m, "")
	case ASCII:
		return WriteASCIISTL(w, m, solidName)
	}
	return fmt.Errorf("%w: unknown stl format %q", scan.ErrInvalidConfig, f)
}

// WriteBinarySTL writes m as binary STL. header is truncated to 80 bytes and
// space padded; empty means DefaultHeader.
func WriteBinarySTL(w io.Writer, m *scan.Mesh, header string) error {
	if header == "" {
		header = DefaultHeader()
	}
	var h [headerSize]byte
	for i := range h {
		h[i] = ' '
	}
	copy(h[:], header)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(h[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}
	n := m.Len()
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("stl: %d triangles exceed the format limit", n)
	}
	var buf [facetSize]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(n))
	if _, err := bw.Write(buf[:4]); err != nil {
		return fmt.Errorf("write stl count: %w", err)
	}
	for i := 0; i < n; i++ {
		t := m.Triangles[i]
		putVec(buf[0:], l5mesh.Normal(t))
		for k, p := range t {
			putVec(buf[12+12*k:], p)
		}
		binary.LittleEndian.PutUint16(buf[48:], 0)
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("write stl facet %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func putVec(b []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}

func getVec(b []byte) r3.Vec {
	return r3.Vec{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}
}

// WriteASCIISTL writes m as an ASCII "solid" block.
func WriteASCIISTL(w io.Writer, m *scan.Mesh, name string) error {
	if name == "" {
		name = solidName
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)
	for i := 0; i < m.Len(); i++ {
		t := m.Triangles[i]
		n := l5mesh.Normal(t)
		fmt.Fprintf(bw, "  facet normal %e %e %e\n", float32(n.X), float32(n.Y), float32(n.Z))
		bw.WriteString("    outer loop\n")
		for _, p := range t {
			fmt.Fprintf(bw, "      vertex %e %e %e\n", float32(p.X), float32(p.Y), float32(p.Z))
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// ReadBinarySTL decodes a binary STL stream, the inverse of WriteSTL with
// Binary. It is the readback path for files written by scanmesh and bodies
// served by GET /api/scans/{id}/stl. Normals are discarded; vertices come
// back at float32 precision.
func ReadBinarySTL(r io.Reader) (*scan.Mesh, string, error) {
	var header struct {
		H    [headerSize]byte
		NTri uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, "", fmt.Errorf("read stl header: %w", err)
	}
	name := strings.TrimRight(string(header.H[:]), " \x00")

	capHint := int(header.NTri)
	if capHint > 1<<16 {
		capHint = 1 << 16
	}
	m := &scan.Mesh{Triangles: make([]r3.Triangle, 0, capHint)}
	var buf [facetSize]byte
	for i := 0; i < int(header.NTri); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, name, fmt.Errorf("read stl facet %d: %w", i, err)
		}
		var t r3.Triangle
		for k := range t {
			t[k] = getVec(buf[12+12*k:])
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, name, nil
}
