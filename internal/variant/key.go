package variant

import (
	"math/rand"
	"strings"
)

const (
	KeyLength   = 6
	KeyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// MintKeys returns count distinct keys. Candidates are drawn in rounds until
// the distinct count is reached; duplicates are dropped, never returned.
func MintKeys(rng *rand.Rand, count int) []string {
	if count <= 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)
	for len(out) < count {
		for i := len(out); i < count; i++ {
			k := randomKey(rng)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

func randomKey(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(KeyLength)
	for i := 0; i < KeyLength; i++ {
		b.WriteByte(KeyAlphabet[rng.Intn(len(KeyAlphabet))])
	}
	return b.String()
}

// ValidKey reports whether s has the key length and only key alphabet symbols.
func ValidKey(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(KeyAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
