package sensor

import (
	"context"
	"math/rand"
	"sync"
)

// Sim is a development gateway producing a bounded random walk around
// room conditions, so the full pipeline can run on a machine with no
// sensor attached.
type Sim struct {
	mu          sync.Mutex
	rng         *rand.Rand
	temperature float64
	humidity    float64
}

func NewSim(seed int64) *Sim {
	return &Sim{
		rng:         rand.New(rand.NewSource(seed)),
		temperature: 22.0,
		humidity:    50.0,
	}
}

func (s *Sim) Read(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.temperature = drift(s.rng, s.temperature, 0.3, 10.0, 35.0)
	s.humidity = drift(s.rng, s.humidity, 1.0, 20.0, 90.0)
	return s.temperature, s.humidity, nil
}

func drift(rng *rand.Rand, v, step, lo, hi float64) float64 {
	v += (rng.Float64()*2 - 1) * step
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
