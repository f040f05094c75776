package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
)

// Collector buffers debug frames and accounts their memory until flushed.
// Single-owner: the replay loop is the only writer.
type Collector struct {
	dir     string
	pending []pendingFrame
	bytes   int64
	written int
}

type pendingFrame struct {
	name string
	data []byte
}

// New creates a collector that drains into dir (created on first flush).
func New(dir string) *Collector {
	return &Collector{dir: dir}
}

// AddFrame buffers one named artifact. The payload is owned by the
// collector from this point on.
func (c *Collector) AddFrame(name string, data []byte) {
	c.pending = append(c.pending, pendingFrame{name: name, data: data})
	c.bytes += int64(len(data))
}

// MemoryUsage is the number of buffered, not-yet-flushed bytes.
func (c *Collector) MemoryUsage() int64 { return c.bytes }

// Written is the number of frames flushed to disk so far.
func (c *Collector) Written() int { return c.written }

// Flush drains all buffered frames to disk and resets the accounting.
func (c *Collector) Flush() error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("diagnostics dir: %w", err)
	}
	for _, f := range c.pending {
		if err := os.WriteFile(filepath.Join(c.dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write frame %s: %w", f.name, err)
		}
		c.written++
	}
	c.Reset()
	return nil
}

// Reset drops buffered frames without writing them.
func (c *Collector) Reset() {
	c.pending = nil
	c.bytes = 0
}

// EncodePGM renders a single-channel buffer as a binary PGM image.
func EncodePGM(width, height int, pixels []byte) []byte {
	header := fmt.Sprintf("P5\n%d %d\n255\n", width, height)
	out := make([]byte, 0, len(header)+len(pixels))
	out = append(out, header...)
	out = append(out, pixels...)
	return out
}
