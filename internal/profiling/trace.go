package profiling

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var magic = [4]byte{'X', 'E', 'V', 'P'}

const version uint16 = 1

// Span is one recorded processing block.
type Span struct {
	Label    string
	Start    int64 // microseconds
	Duration int64 // microseconds
}

// Recorder accumulates spans in memory. Single-owner, no locking.
type Recorder struct {
	spans []Span
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one span.
func (r *Recorder) Record(label string, startMicros, durMicros int64) {
	r.spans = append(r.spans, Span{Label: label, Start: startMicros, Duration: durMicros})
}

// Len is the number of recorded spans.
func (r *Recorder) Len() int { return len(r.spans) }

// Dump writes the binary trace.
func (r *Recorder) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, version); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(r.spans))); err != nil {
		return err
	}
	for _, s := range r.spans {
		if len(s.Label) > 1<<16-1 {
			return fmt.Errorf("span label too long: %d bytes", len(s.Label))
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(s.Label))); err != nil {
			return err
		}
		if _, err := bw.WriteString(s.Label); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, s.Start); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, s.Duration); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DumpFile writes the trace to path, truncating any previous dump.
func (r *Recorder) DumpFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace %s: %w", path, err)
	}
	if err := r.Dump(f); err != nil {
		f.Close()
		return fmt.Errorf("dump trace %s: %w", path, err)
	}
	return f.Close()
}

// ReadTrace decodes a binary trace written by Dump.
func ReadTrace(rd io.Reader) ([]Span, error) {
	br := bufio.NewReader(rd)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("bad magic %q", gotMagic[:])
	}
	var gotVersion uint16
	if err := binary.Read(br, binary.LittleEndian, &gotVersion); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if gotVersion != version {
		return nil, fmt.Errorf("unsupported trace version %d", gotVersion)
	}
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	spans := make([]Span, 0, count)
	for i := uint32(0); i < count; i++ {
		var labelLen uint16
		if err := binary.Read(br, binary.LittleEndian, &labelLen); err != nil {
			return nil, fmt.Errorf("span %d: read label length: %w", i, err)
		}
		label := make([]byte, labelLen)
		if _, err := io.ReadFull(br, label); err != nil {
			return nil, fmt.Errorf("span %d: read label: %w", i, err)
		}
		var s Span
		s.Label = string(label)
		if err := binary.Read(br, binary.LittleEndian, &s.Start); err != nil {
			return nil, fmt.Errorf("span %d: read start: %w", i, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &s.Duration); err != nil {
			return nil, fmt.Errorf("span %d: read duration: %w", i, err)
		}
		spans = append(spans, s)
	}
	return spans, nil
}
