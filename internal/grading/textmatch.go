package grading

import (
	"strconv"
	"strings"
	"unicode"
)

// foldAnswer folds case and drops whitespace, reading Ё as Е.
// Signs, decimal points and slashes are kept.
func foldAnswer(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == 'ё' || r == 'Ё':
			return 'Е'
		default:
			return unicode.ToUpper(r)
		}
	}, s)
}

// editDistance is the Levenshtein distance over runes.
func editDistance(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			sub := prev[j-1]
			if ar[i-1] != br[j-1] {
				sub++
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(br)]
}

// numericEqual treats "3,50" and "3.5" as the same answer.
func numericEqual(a, b string) bool {
	fa, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(a), ",", "."), 64)
	if err != nil {
		return false
	}
	fb, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(b), ",", "."), 64)
	return err == nil && fa == fb
}
