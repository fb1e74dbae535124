package sim

import (
	"hash/fnv"
	"math/rand"
)

// Streams hands out one random source per named consumer, all derived
// from a single seed. A consumer's stream depends only on the seed and
// its own name, so creating VMs in a different order or adding VMs never
// changes the draws of existing ones.
//
// Not safe for concurrent use; the loop is single-threaded.
type Streams struct {
	seed   int64
	byName map[string]*rand.Rand
}

func NewStreams(seed int64) *Streams {
	return &Streams{seed: seed, byName: make(map[string]*rand.Rand)}
}

// Stream returns the source for name, creating it on first use.
func (s *Streams) Stream(name string) *rand.Rand {
	r, ok := s.byName[name]
	if !ok {
		r = rand.New(rand.NewSource(deriveSeed(s.seed, name)))
		s.byName[name] = r
	}
	return r
}

// Seed returns the seed the streams were derived from.
func (s *Streams) Seed() int64 { return s.seed }

func workloadStream(vm string) string { return "workload/" + vm }

// deriveSeed mixes seed with the FNV-1a hash of name.
func deriveSeed(seed int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}
