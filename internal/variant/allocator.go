package variant

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mind-engage/reshuffle/internal/taskbank"
)

// ErrInvalidTarget means no sequence of levels from the scale can reach the requested total.
var ErrInvalidTarget = errors.New("difficulty target not reachable")

// NewRand returns a random source; seed 0 means time-seeded.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Allocate returns n difficulty levels drawn from scale whose sum is exactly total.
// Levels start uniformly random and are nudged one step at a time toward the total,
// then shuffled so that position order carries no difficulty signal.
func Allocate(rng *rand.Rand, n, total int, scale taskbank.Scale) ([]int, error) {
	if n <= 0 {
		return []int{}, nil
	}
	if scale.Max < scale.Min {
		return nil, fmt.Errorf("scale [%d, %d]: %w", scale.Min, scale.Max, ErrInvalidTarget)
	}
	if lo, hi := scale.Range(n); total < lo || total > hi {
		return nil, fmt.Errorf("total %d outside [%d, %d]: %w", total, lo, hi, ErrInvalidTarget)
	}

	levels := Uniform(rng, n, scale)
	sum := 0
	for _, v := range levels {
		sum += v
	}
	idx := make([]int, 0, n)
	for sum != total {
		idx = idx[:0]
		down := sum > total
		for i, v := range levels {
			if (down && v > scale.Min) || (!down && v < scale.Max) {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			return nil, fmt.Errorf("sum %d, target %d: %w", sum, total, ErrInvalidTarget)
		}
		i := idx[rng.Intn(len(idx))]
		if down {
			levels[i]--
			sum--
		} else {
			levels[i]++
			sum++
		}
	}
	rng.Shuffle(len(levels), func(i, j int) { levels[i], levels[j] = levels[j], levels[i] })
	return levels, nil
}

// Uniform returns n independent uniformly random levels from scale.
func Uniform(rng *rand.Rand, n int, scale taskbank.Scale) []int {
	span := scale.Max - scale.Min + 1
	out := make([]int, n)
	for i := range out {
		out[i] = scale.Min + rng.Intn(span)
	}
	return out
}
