package raft

import "math/rand"

// jitterSource isolates the instance's one RNG use site so Start can seed
// it explicitly and reproducibly, replacing the reference implementation's
// thread-local DRBG (see SPEC_FULL.md §9).
type jitterSource struct {
	r *rand.Rand
}

func newJitterSource(seed int64) *jitterSource {
	return &jitterSource{r: rand.New(rand.NewSource(seed))}
}

// next returns a value in [0, n).
func (j *jitterSource) next(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return j.r.Int63n(n)
}
