package disease

import (
	"math/rand"
	"sync"
)

// JitterSource yields values in [0,1) that spread region-analysis confidences.
type JitterSource interface {
	Float64() float64
}

// ConstantJitter always returns its own value; zero disables jitter.
type ConstantJitter float64

func (c ConstantJitter) Float64() float64 { return float64(c) }

// seededJitter is safe for use by concurrent requests.
type seededJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededJitter returns a goroutine-safe pseudo-random source.
func NewSeededJitter(seed int64) JitterSource {
	return &seededJitter{rng: rand.New(rand.NewSource(seed))}
}

func (s *seededJitter) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
