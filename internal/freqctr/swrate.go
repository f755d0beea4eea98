package freqctr

// SlidingAverage approximates the mean of the last N samples without
// storing them: each new sample replaces one N-th of the running sum.
// It is not safe for concurrent use.
type SlidingAverage struct {
	sum uint64
	n   uint64
}

// NewSlidingAverage returns an average over roughly n samples.
func NewSlidingAverage(n uint64) *SlidingAverage {
	if n == 0 {
		n = 1
	}
	return &SlidingAverage{n: n}
}

// Add feeds one sample.
func (s *SlidingAverage) Add(v uint64) {
	s.sum = s.sum - (s.sum+s.n-1)/s.n + v
}

// Avg returns the current average.
func (s *SlidingAverage) Avg() uint64 {
	return (s.sum + s.n - 1) / s.n
}
