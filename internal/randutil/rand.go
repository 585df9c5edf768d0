// Package randutil builds reproducible random sources for dealing hands.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG source whose two seeds are both derived from seed, so
// equal seeds deal equal hands.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// Seeded uses the given seed when set and the clock otherwise. The seed in
// use is returned so a hand can be replayed.
func Seeded(seed *int64) (*rand.Rand, int64) {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return New(s), s
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
