// sheetctl generates batches and scores scans without the gateway.
//
//	sheetctl generate -bank bank.json -subject 1 -date 01.06.2026 -amount 20 -out ./out
//	sheetctl scan -data out/archives/<id>/data.json -photo sheet.jpg [-annotated scored.png]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/ocr"
	"github.com/mind-engage/reshuffle/internal/scan"
	"github.com/mind-engage/reshuffle/internal/storage"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: sheetctl <generate|scan> [flags]\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "generate":
		err = generate(ctx, os.Args[2:])
	case "scan":
		err = scanPhoto(ctx, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	bankPath := fs.String("bank", "", "Path to the task bank JSON file")
	subject := fs.Int64("subject", 0, "Subject id")
	date := fs.String("date", time.Now().Format(docs.DateLayout), "Exam date (dd.mm.yyyy)")
	amount := fs.Int("amount", 1, "Number of variants")
	out := fs.String("out", "./out", "Output directory")
	seed := fs.Int64("seed", 0, "Random seed (0 = time based)")
	fontPath := fs.String("font", "", "Optional TTF font for sheets")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	_ = fs.Parse(args)

	if *bankPath == "" || *subject == 0 {
		return fmt.Errorf("-bank and -subject are required")
	}
	f, err := os.Open(*bankPath)
	if err != nil {
		return err
	}
	defer f.Close()
	bank, err := taskbank.LoadBank(f, taskbank.DefaultScale)
	if err != nil {
		return err
	}
	store, err := storage.NewFSStore(*out)
	if err != nil {
		return err
	}
	renderer, err := layout.NewRenderer(*fontPath)
	if err != nil {
		return err
	}
	lg := logger.Nop()
	if *verbose {
		if lg, err = logger.New("dev"); err != nil {
			return err
		}
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	pkg := docs.NewPackager(bank, store, renderer, taskbank.DefaultScale, 0, lg)
	m, err := pkg.Generate(ctx, docs.Request{SubjectID: *subject, Date: *date, Amount: *amount}, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}
	fmt.Printf("archive %s\n", filepath.Join(*out, filepath.FromSlash(m.ZipKey())))
	fmt.Printf("keys    %s\n", strings.Join(m.Document.Keys(), " "))
	return nil
}

func scanPhoto(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dataPath := fs.String("data", "", "Path to the batch data.json")
	photoPath := fs.String("photo", "", "Path to the sheet photo")
	rectified := fs.Bool("rectified", false, "Input is already the sheet (skip page detection)")
	driver := fs.String("ocr", "tesseract", "OCR engine (tesseract|vision)")
	lang := fs.String("lang", "eng", "OCR language")
	overlay := fs.String("overlay", "", "Manual verdicts, e.g. A3=1,B2=0")
	annotated := fs.String("annotated", "", "Write the annotated frame to this PNG")
	_ = fs.Parse(args)

	if *dataPath == "" || *photoPath == "" {
		return fmt.Errorf("-data and -photo are required")
	}
	ov, err := parseOverlay(*overlay)
	if err != nil {
		return err
	}
	df, err := os.Open(*dataPath)
	if err != nil {
		return err
	}
	defer df.Close()
	doc, err := variant.ParseDocument(df)
	if err != nil {
		return err
	}
	pf, err := os.Open(*photoPath)
	if err != nil {
		return err
	}
	defer pf.Close()
	img, err := scan.DecodePhoto(pf)
	if err != nil {
		return err
	}

	reader, err := ocr.Open(ctx, ocr.Options{Driver: *driver, Lang: *lang}, nil)
	if err != nil {
		return err
	}
	p := scan.NewPipeline(reader, nil)
	p.Rectified = *rectified
	rec, err := p.Recognize(ctx, img, doc)
	if err != nil {
		return err
	}
	if !rec.Key.Recognized {
		return fmt.Errorf("unique key not recognized (read %q)", rec.Key.Raw)
	}
	var res grading.Result
	if rec.ExtractErr != nil {
		res = grading.Fallback(rec.Variant, rec.ExtractErr.Error())
	} else {
		res = grading.NewScorer().Score(ctx, rec.Variant, rec.Extraction, ov)
	}
	if *annotated != "" {
		out, err := os.Create(*annotated)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := png.Encode(out, checking.Annotate(rec.Frame, rec.Extraction, res)); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// parseOverlay reads "A3=1,B2=0".
func parseOverlay(s string) (grading.Overlay, error) {
	ov := grading.Overlay{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		label, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("overlay entry %q: want LABEL=0|1", kv)
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("overlay entry %q: %w", kv, err)
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		if _, _, err := variant.ParseLabel(label); err != nil {
			return nil, err
		}
		ov[label] = b
	}
	return ov, nil
}
