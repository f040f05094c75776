package archive

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrDone is returned by Next once the filtered view is exhausted.
var ErrDone = errors.New("archive: no more messages")

// Error wraps failures to open or scan a log file. These are fatal:
// a benchmark over a partially readable archive is not a benchmark.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeRange bounds the replay window in archive time (seconds).
type TimeRange struct {
	From float64
	To   float64
}

// FullRange keeps every message regardless of timestamp.
func FullRange() TimeRange {
	return TimeRange{From: math.Inf(-1), To: math.Inf(1)}
}

// Contains reports whether t falls inside the window.
func (tr TimeRange) Contains(t float64) bool {
	return t >= tr.From && t <= tr.To
}

// record is the on-disk shape of one log line. Type discriminates the
// payload; unused fields are simply absent.
type record struct {
	Topic  string  `json:"topic"`
	Type   string  `json:"type"`
	Time   float64 `json:"t"`
	Seq    uint64  `json:"seq"`
	End    float64 `json:"t_end"`
	Width  int     `json:"width"`
	Height int     `json:"height"`

	AngularVelocity [3]float64 `json:"w"`
	SpecificForce   [3]float64 `json:"a"`

	Pixels []byte  `json:"pixels"`
	Events []Event `json:"events"`

	Position [3]float64 `json:"p"`
	Rotation [4]float64 `json:"q"`

	Transforms []struct {
		Time     float64    `json:"t"`
		Position [3]float64 `json:"p"`
		Rotation [4]float64 `json:"q"`
	} `json:"transforms"`
}

// Reader iterates a filtered, chronologically ordered view of a log.
// It is a one-shot cursor and is not safe for concurrent use.
type Reader struct {
	msgs    []Message
	pos     int
	skipped int
}

// Open reads the log at path and builds the filtered view. Topics not in
// the filter are discarded; a filter topic absent from the log simply
// contributes no messages. Records the decoder cannot place in the closed
// message set are logged and skipped, never fatal.
func Open(path string, topics []string, tr TimeRange, log *zap.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	defer f.Close()

	want := make(map[string]bool, len(topics))
	for _, t := range topics {
		if t != "" {
			want[t] = true
		}
	}

	r := &Reader{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Warn("skipping undecodable record",
				zap.String("path", path), zap.Int("line", line), zap.Error(err))
			r.skipped++
			continue
		}
		if !want[rec.Topic] || !tr.Contains(rec.Time) {
			continue
		}
		body, err := rec.decode()
		if err != nil {
			log.Warn("skipping unrecognized record",
				zap.String("topic", rec.Topic), zap.Int("line", line), zap.Error(err))
			r.skipped++
			continue
		}
		r.msgs = append(r.msgs, Message{
			Topic: rec.Topic,
			Time:  rec.Time,
			Index: line,
			Body:  body,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	sort.SliceStable(r.msgs, func(i, j int) bool {
		return r.msgs[i].Time < r.msgs[j].Time
	})
	return r, nil
}

// decode maps a raw record onto the closed message union.
func (rec *record) decode() (Body, error) {
	switch rec.Type {
	case "imu":
		return &InertialSample{
			Time:            rec.Time,
			Seq:             rec.Seq,
			AngularVelocity: rec.AngularVelocity,
			SpecificForce:   rec.SpecificForce,
		}, nil
	case "image":
		if rec.Width <= 0 || rec.Height <= 0 {
			return nil, fmt.Errorf("image with dimensions %dx%d", rec.Width, rec.Height)
		}
		return &ImageFrame{
			Time:   rec.Time,
			Seq:    rec.Seq,
			Width:  rec.Width,
			Height: rec.Height,
			Pixels: rec.Pixels,
		}, nil
	case "events":
		return &EventBatch{
			Seq:    rec.Seq,
			Begin:  rec.Time,
			End:    rec.End,
			Width:  rec.Width,
			Height: rec.Height,
			Events: rec.Events,
		}, nil
	case "pose":
		return &GroundTruthPose{
			Time: rec.Time,
			Poses: []Pose{{
				Time:     rec.Time,
				Position: rec.Position,
				Rotation: rec.Rotation,
			}},
		}, nil
	case "tf":
		gt := &GroundTruthPose{Time: rec.Time}
		for _, tf := range rec.Transforms {
			gt.Poses = append(gt.Poses, Pose{
				Time:     tf.Time,
				Position: tf.Position,
				Rotation: tf.Rotation,
			})
		}
		return gt, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", rec.Type)
	}
}

// Len is the total number of messages in the filtered view.
func (r *Reader) Len() int { return len(r.msgs) }

// Skipped is the number of records dropped as undecodable.
func (r *Reader) Skipped() int { return r.skipped }

// Begin is the timestamp of the first message in the view, 0 if empty.
func (r *Reader) Begin() float64 {
	if len(r.msgs) == 0 {
		return 0
	}
	return r.msgs[0].Time
}

// End is the timestamp of the last message in the view, 0 if empty.
func (r *Reader) End() float64 {
	if len(r.msgs) == 0 {
		return 0
	}
	return r.msgs[len(r.msgs)-1].Time
}

// Next yields the next message in chronological order, or ErrDone once the
// view is exhausted. The cursor never restarts.
func (r *Reader) Next() (*Message, error) {
	if r.pos >= len(r.msgs) {
		return nil, ErrDone
	}
	m := &r.msgs[r.pos]
	r.pos++
	return m, nil
}
