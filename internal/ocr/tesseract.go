package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TesseractOCR shells out to the tesseract CLI in single-line mode.
type TesseractOCR struct {
	Lang    string
	Timeout time.Duration
}

func NewTesseractOCR() *TesseractOCR {
	return &TesseractOCR{Lang: "eng", Timeout: 20 * time.Second}
}

func (t *TesseractOCR) ReadText(ctx context.Context, img image.Image, allow string) (string, error) {
	f, err := os.CreateTemp("", "cell-*.png")
	if err != nil {
		return "", err
	}
	defer func() { f.Close(); os.Remove(f.Name()) }()
	if err := png.Encode(f, img); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	out, err := t.exec(ctx, f.Name(), allow)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(Keep(out, allow)), nil
}

func (t *TesseractOCR) args(inPath, allow string) []string {
	args := []string{inPath, "stdout", "--psm", "7"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	if allow != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+allow)
	}
	return args
}

func (t *TesseractOCR) exec(ctx context.Context, inPath, allow string) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", errors.New("tesseract not found in PATH")
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "tesseract", t.args(inPath, allow)...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.New(stderr.String())
	}
	return out.String(), nil
}
