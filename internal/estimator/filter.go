package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/x-evaluate/internal/config"
)

// biasAlpha is the exponential-averaging gain for the bias estimates.
const biasAlpha = 0.001

// filter is the shared reference frontend: inertial dead reckoning with
// slowly adapting bias estimates. Image and event updates advance the
// state clock and produce debug frames but perform no correction.
type filter struct {
	name          string
	processEvents bool

	params *config.Params

	initialized bool
	hasTime     bool
	t           float64

	p, v    r3.Vec
	q       quat.Number
	ba, bw  r3.Vec
	gravity float64

	debug *Image
}

func newFilter(name string, p *config.Params, processEvents bool) *filter {
	f := &filter{name: name, processEvents: processEvents}
	_ = f.SetUp(p)
	return f
}

func (f *filter) SetUp(p *config.Params) error {
	f.params = p
	f.p = r3.Vec{X: p.P0[0], Y: p.P0[1], Z: p.P0[2]}
	f.v = r3.Vec{X: p.V0[0], Y: p.V0[1], Z: p.V0[2]}
	f.q = normalize(quat.Number{Real: p.Q0[3], Imag: p.Q0[0], Jmag: p.Q0[1], Kmag: p.Q0[2]})
	f.ba = r3.Vec{X: p.BA0[0], Y: p.BA0[1], Z: p.BA0[2]}
	f.bw = r3.Vec{X: p.BW0[0], Y: p.BW0[1], Z: p.BW0[2]}
	f.gravity = p.Gravity
	f.initialized = false
	f.hasTime = false
	return nil
}

func (f *filter) InitAtTime(t float64) {
	f.t = t
	f.hasTime = true
}

func (f *filter) ProcessImu(t float64, seq uint64, angVel, specForce r3.Vec) (State, error) {
	if f.hasTime {
		dt := t - f.t
		if dt > 0 {
			wc := r3.Sub(angVel, f.bw)
			f.q = integrate(f.q, wc, dt)

			ac := r3.Sub(specForce, f.ba)
			aWorld := r3.Add(rotate(f.q, ac), r3.Vec{Z: -f.gravity})
			f.v = r3.Add(f.v, r3.Scale(dt, aWorld))
			f.p = r3.Add(f.p, r3.Scale(dt, f.v))
		}
	}

	// Slow bias adaptation toward the measurement residuals.
	f.bw = lerp(f.bw, angVel, biasAlpha)
	restForce := rotate(quat.Conj(f.q), r3.Vec{Z: f.gravity})
	f.ba = lerp(f.ba, r3.Sub(specForce, restForce), biasAlpha)

	f.t = t
	f.hasTime = true
	f.initialized = true
	return f.snapshot(), nil
}

func (f *filter) ProcessImage(img Image) (State, error) {
	if img.Time > f.t {
		f.t = img.Time
		f.hasTime = true
	}
	f.debug = f.tileOverlay(img)
	return f.snapshot(), nil
}

func (f *filter) ProcessEvents(batch Events) (State, error) {
	if !f.processEvents {
		return State{}, fmt.Errorf("%s frontend does not process events", f.name)
	}
	if batch.End > f.t {
		f.t = batch.End
		f.hasTime = true
	}
	return f.snapshot(), nil
}

func (f *filter) IsInitialized() bool { return f.initialized }

func (f *filter) DoesProcessEvents() bool { return f.processEvents }

func (f *filter) DebugFrame() *Image {
	d := f.debug
	f.debug = nil
	return d
}

func (f *filter) snapshot() State {
	return State{
		Time:        f.t,
		Position:    f.p,
		Orientation: f.q,
		AccelBias:   f.ba,
		GyroBias:    f.bw,
	}
}

// tileOverlay copies the frame and marks the tracker's tile grid, standing
// in for a feature visualization.
func (f *filter) tileOverlay(img Image) *Image {
	pix := make([]byte, len(img.Pixels))
	copy(pix, img.Pixels)
	out := &Image{Time: img.Time, Seq: img.Seq, Width: img.Width, Height: img.Height, Pixels: pix}
	if f.params == nil || img.Width == 0 || img.Height == 0 || len(pix) < img.Width*img.Height {
		return out
	}
	for i := 1; i < f.params.NTilesW; i++ {
		x := i * img.Width / f.params.NTilesW
		for y := 0; y < img.Height; y++ {
			pix[y*img.Width+x] = 255
		}
	}
	for j := 1; j < f.params.NTilesH; j++ {
		y := j * img.Height / f.params.NTilesH
		for x := 0; x < img.Width; x++ {
			pix[y*img.Width+x] = 255
		}
	}
	return out
}

// integrate applies an angular-velocity rotation over dt to q.
func integrate(q quat.Number, w r3.Vec, dt float64) quat.Number {
	angle := r3.Norm(w) * dt
	if angle < 1e-12 {
		return q
	}
	axis := r3.Scale(1/r3.Norm(w), w)
	s := math.Sin(angle / 2)
	dq := quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
	return normalize(quat.Mul(q, dq))
}

// rotate applies the rotation q to v.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func lerp(a, b r3.Vec, alpha float64) r3.Vec {
	return r3.Add(r3.Scale(1-alpha, a), r3.Scale(alpha, b))
}
