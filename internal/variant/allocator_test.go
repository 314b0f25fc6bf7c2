package variant_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

func TestAllocateHitsTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scales := []taskbank.Scale{{Min: 0, Max: 2}, {Min: 1, Max: 3}, {Min: 1, Max: 5}}
	for _, sc := range scales {
		for n := 1; n <= 30; n++ {
			lo, hi := sc.Range(n)
			for total := lo; total <= hi; total++ {
				levels, err := variant.Allocate(rng, n, total, sc)
				if err != nil {
					t.Fatalf("Allocate(%d,%d,%v): %v", n, total, sc, err)
				}
				if len(levels) != n {
					t.Fatalf("len=%d want %d", len(levels), n)
				}
				sum := 0
				for _, v := range levels {
					if !sc.Contains(v) {
						t.Fatalf("level %d outside %v", v, sc)
					}
					sum += v
				}
				if sum != total {
					t.Fatalf("sum=%d want %d", sum, total)
				}
			}
		}
	}
}

func TestAllocateRejectsUnreachableTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, total := range []int{-1, 31} {
		if _, err := variant.Allocate(rng, 15, total, taskbank.DefaultScale); !errors.Is(err, variant.ErrInvalidTarget) {
			t.Fatalf("total %d: expected ErrInvalidTarget, got %v", total, err)
		}
	}
}

func TestAllocateVariesAcrossCalls(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	first, _ := variant.Allocate(rng, 12, 12, taskbank.DefaultScale)
	for i := 0; i < 20; i++ {
		next, _ := variant.Allocate(rng, 12, 12, taskbank.DefaultScale)
		for j := range next {
			if next[j] != first[j] {
				return
			}
		}
	}
	t.Fatalf("21 allocations produced the same sequence")
}

func TestMintKeys(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, count := range []int{0, 1, 5, 100, 1000} {
		keys := variant.MintKeys(rng, count)
		if len(keys) != count {
			t.Fatalf("count %d: got %d keys", count, len(keys))
		}
		seen := map[string]bool{}
		for _, k := range keys {
			if !variant.ValidKey(k) {
				t.Fatalf("invalid key %q", k)
			}
			if seen[k] {
				t.Fatalf("duplicate key %q", k)
			}
			seen[k] = true
		}
	}
}

// constSource yields zero for the first two keys' draws, so the second candidate collides.
type constSource struct{ calls int }

func (c *constSource) Int63() int64 {
	c.calls++
	if c.calls <= 12 {
		return 0
	}
	return int64(c.calls) << 32
}
func (c *constSource) Seed(int64) {}

func TestMintKeysDropsCollisions(t *testing.T) {
	src := &constSource{}
	keys := variant.MintKeys(rand.New(src), 2)
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("keys=%v", keys)
	}
}

func TestValidKey(t *testing.T) {
	for s, want := range map[string]bool{"A1B2C3": true, "a1b2c3": false, "A1B2C": false, "A1B2C3D": false, "A1-2C3": false} {
		if variant.ValidKey(s) != want {
			t.Fatalf("ValidKey(%q) != %v", s, want)
		}
	}
}
