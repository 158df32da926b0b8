package render

import "sync"

// sampler remembers, per unit, the highest progress bucket already logged.
type sampler struct {
	mu      sync.Mutex
	buckets int
	last    map[string]int
}

func newSampler(buckets int) *sampler {
	if buckets <= 0 {
		buckets = 1
	}
	return &sampler{buckets: buckets, last: make(map[string]int)}
}

// admit reports whether fraction reaches a bucket not yet logged for key.
// The first update after restart is always admitted.
func (s *sampler) admit(key string, fraction float64) bool {
	bucket := int(fraction * float64(s.buckets))
	bucket = max(0, min(bucket, s.buckets))

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[key]; ok && bucket <= last {
		return false
	}
	s.last[key] = bucket
	return true
}

func (s *sampler) restart(key string) {
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}
