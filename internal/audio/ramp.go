package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Ramp moves a gain toward a target over a fixed number of sample frames
// along a smoothstep curve. The zero value holds gain 0 and jumps instantly.
type Ramp struct {
	from, to float64
	pos      int
	length   int
}

// NewRamp returns a ramp resting at gain that takes length frames per move.
func NewRamp(gain float64, length int) Ramp {
	return Ramp{from: gain, to: gain, pos: length, length: length}
}

// Set starts a new move from the current value toward target.
func (r *Ramp) Set(target float64) {
	r.from = r.Value()
	r.to = target
	r.pos = 0
}

// Value returns the current gain without advancing.
func (r *Ramp) Value() float64 {
	if r.pos >= r.length {
		return r.to
	}
	p := float64(r.pos) / float64(r.length)
	return r.from + (r.to-r.from)*Smoothstep(p)
}

// Next returns the current gain and advances by one frame.
func (r *Ramp) Next() float64 {
	v := r.Value()
	if r.pos < r.length {
		r.pos++
	}
	return v
}

// Target returns the gain the ramp is heading to.
func (r *Ramp) Target() float64 {
	return r.to
}

// Done reports whether the ramp has reached its target.
func (r *Ramp) Done() bool {
	return r.pos >= r.length
}
