package exec

import "math/rand"

func newSeededRand(n int64) *rand.Rand {
	if n == 0 {
		n = 1
	}
	if n < 0 {
		n = -n
	}
	return rand.New(rand.NewSource(n))
}
