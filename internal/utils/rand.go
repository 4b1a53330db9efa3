// internal/utils/rand.go

package utils

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the random source used for rotation cadence, jitter, and referer
// selection. Centralizing it behind an interface keeps every consumer
// deterministic under test.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n). Panics if n <= 0.
	Intn(n int) int
}

// lockedRand wraps math/rand.Rand with a mutex; the default shared source
// is accessed from many goroutines at once.
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRand returns a concurrency-safe Rand seeded from the clock.
func NewRand() Rand {
	return NewSeededRand(time.Now().UnixNano())
}

// NewSeededRand returns a concurrency-safe Rand with a fixed seed.
func NewSeededRand(seed int64) Rand {
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}
