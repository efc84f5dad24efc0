package delay

import "gonum.org/v1/gonum/stat/distuv"

// Model draws non-negative nanosecond latency samples from a Gaussian
// distribution, matching the reference simulator's use of a clamped
// random.gauss(mean, std) per scheduled message.
type Model struct {
	dist distuv.Normal
}

// NewModel constructs a latency model with the given mean and standard
// deviation, both in nanoseconds. A zero std yields a constant mean delay.
func NewModel(meanNs, stdNs float64) *Model {
	return &Model{dist: distuv.Normal{Mu: meanNs, Sigma: stdNs}}
}

// SampleNs draws one latency sample, clamped at zero.
func (m *Model) SampleNs() int64 {
	v := m.dist.Rand()
	if v < 0 {
		v = 0
	}
	return int64(v)
}
