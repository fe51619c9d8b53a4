package imgio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// PFM (portable float map) is the interchange format used by the
// Middlebury stereo benchmarks for raw float disparities. Only the
// single-channel "Pf" variant is handled. Rows are stored bottom-to-top;
// a negative scale marks little-endian data.

// FloatMap is a single-channel float image, row-major top-to-bottom.
type FloatMap struct {
	Width  int
	Height int
	Pix    []float32
}

// WritePFM writes m as a little-endian grayscale PFM file.
func WritePFM(path string, m FloatMap) error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid PFM dimensions %dx%d", m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("PFM buffer length %d does not match %dx%d", len(m.Pix), m.Width, m.Height)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "Pf\n%d %d\n-1.0\n", m.Width, m.Height); err != nil {
		return fmt.Errorf("failed to write PFM header: %w", err)
	}

	row := make([]byte, m.Width*4)
	for y := m.Height - 1; y >= 0; y-- {
		for x := 0; x < m.Width; x++ {
			binary.LittleEndian.PutUint32(row[x*4:], math.Float32bits(m.Pix[y*m.Width+x]))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write PFM row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush PFM data: %w", err)
	}
	return nil
}

// ReadPFM reads a grayscale PFM file.
func ReadPFM(path string) (FloatMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return FloatMap{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic string
	var width, height int
	var scale float64
	if _, err := fmt.Fscan(r, &magic, &width, &height, &scale); err != nil {
		return FloatMap{}, fmt.Errorf("failed to parse PFM header: %w", err)
	}
	if magic != "Pf" {
		return FloatMap{}, fmt.Errorf("unsupported PFM type %q (only grayscale Pf is handled)", magic)
	}
	if width <= 0 || height <= 0 {
		return FloatMap{}, fmt.Errorf("invalid PFM dimensions %dx%d", width, height)
	}
	// Single whitespace byte separates the header from binary data.
	if _, err := r.ReadByte(); err != nil {
		return FloatMap{}, fmt.Errorf("failed to read PFM header terminator: %w", err)
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if scale > 0 {
		order = binary.BigEndian
	}

	m := FloatMap{Width: width, Height: height, Pix: make([]float32, width*height)}
	row := make([]byte, width*4)
	for y := height - 1; y >= 0; y-- {
		if _, err := io.ReadFull(r, row); err != nil {
			return FloatMap{}, fmt.Errorf("failed to read PFM row: %w", err)
		}
		for x := 0; x < width; x++ {
			m.Pix[y*width+x] = math.Float32frombits(order.Uint32(row[x*4:]))
		}
	}
	return m, nil
}
