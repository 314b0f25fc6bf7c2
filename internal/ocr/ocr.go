// Package ocr reads short strings (unique keys, written answers) from cropped sheet images.
package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/mind-engage/reshuffle/internal/logger"
)

// Reader recognizes one line of text. allow restricts the result to the
// given characters; empty means unrestricted.
type Reader interface {
	ReadText(ctx context.Context, img image.Image, allow string) (string, error)
}

type Options struct {
	Driver  string // tesseract|vision
	Lang    string
	Timeout time.Duration
}

// Open builds the engine named by opts.Driver.
func Open(ctx context.Context, opts Options, log *logger.Logger) (Reader, error) {
	switch opts.Driver {
	case "", "tesseract":
		t := NewTesseractOCR()
		if opts.Lang != "" {
			t.Lang = opts.Lang
		}
		if opts.Timeout > 0 {
			t.Timeout = opts.Timeout
		}
		return t, nil
	case "vision":
		return NewVision(ctx, opts.Lang, log)
	default:
		return nil, fmt.Errorf("unsupported ocr driver: %s", opts.Driver)
	}
}

// Keep drops every rune of s not in allow. Empty allow keeps everything.
func Keep(s, allow string) string {
	if allow == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(allow, r) || r == ' ' || r == '\n' {
			return r
		}
		return -1
	}, s)
}

// Allowlist is the sorted set of distinct non-space runes in words, upper and lower case folded in.
func Allowlist(words ...string) string {
	seen := map[rune]bool{}
	for _, w := range words {
		for _, r := range w {
			if r == ' ' || r == '\t' || r == '\n' {
				continue
			}
			seen[r] = true
			for _, f := range []rune(strings.ToUpper(string(r)) + strings.ToLower(string(r))) {
				seen[f] = true
			}
		}
	}
	out := make([]rune, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return string(out)
}
