package docs

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// A4 in mm
const (
	pageW  = 210.0
	pageH  = 297.0
	margin = 15.0
	lineH  = 6.0
)

func newPDF() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	// UTF-8 fonts so task text in any script renders
	pdf.AddUTF8FontFromBytes("go", "", goregular.TTF)
	pdf.AddUTF8FontFromBytes("go", "B", gobold.TTF)
	return pdf
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func variantHeading(pdf *gofpdf.Fpdf, doc variant.Document, key string) {
	if doc.DocHeader != "" {
		pdf.SetFont("go", "", 10)
		pdf.MultiCell(0, 5, doc.DocHeader, "", "C", false)
		pdf.Ln(2)
	}
	pdf.SetFont("go", "B", 16)
	pdf.CellFormat(0, 9, doc.Subject.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("go", "", 12)
	pdf.CellFormat(0, lineH, fmt.Sprintf("%s    Variant %s", doc.Date, key), "", 1, "C", false, 0, "")
	pdf.Ln(3)
}

// tasksPDF prints every variant's tasks followed by its answer sheet.
func tasksPDF(b *Bundle) ([]byte, error) {
	doc := b.Document
	pdf := newPDF()
	for _, v := range doc.Variants {
		pdf.AddPage()
		variantHeading(pdf, doc, v.UniqueKey)
		if doc.Subject.InstContent != "" {
			pdf.SetFont("go", "B", 11)
			title := b.Subject.InstTitle
			if title == "" {
				title = "Instructions"
			}
			pdf.CellFormat(0, lineH, title, "", 1, "L", false, 0, "")
			pdf.SetFont("go", "", 11)
			pdf.MultiCell(0, 5, doc.Subject.InstContent, "", "L", false)
			pdf.Ln(2)
		}
		for _, p := range v.Parts {
			pdf.SetFont("go", "B", 12)
			pdf.CellFormat(0, lineH+1, "Part "+p.Info.Title, "", 1, "L", false, 0, "")
			if p.Info.InstContent != "" {
				pdf.SetFont("go", "", 10)
				pdf.MultiCell(0, 5, p.Info.InstContent, "", "L", false)
			}
			pdf.SetFont("go", "", 11)
			for _, m := range p.Material {
				pdf.MultiCell(0, lineH, m.Position+". "+m.Content, "", "L", false)
				if p.Info.AnswerType == taskbank.AnswerChoice {
					for i, o := range m.Options {
						pdf.SetX(margin + 8)
						pdf.MultiCell(0, lineH, fmt.Sprintf("%d) %s", i+1, o.Content), "", "L", false)
					}
				}
				pdf.Ln(1)
			}
		}

		sheet, ok := b.Sheets[v.UniqueKey]
		if !ok {
			return nil, fmt.Errorf("no sheet for %s", v.UniqueKey)
		}
		pdf.AddPage()
		name := "sheet-" + v.UniqueKey
		opt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(sheet))
		pdf.ImageOptions(name, 0, 0, pageW, pageH, false, opt, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, err
		}
	}
	return output(pdf)
}

// answersPDF is the examiner's key: correct option rows and accepted spellings per position.
func answersPDF(doc variant.Document) ([]byte, error) {
	pdf := newPDF()
	for _, v := range doc.Variants {
		pdf.AddPage()
		variantHeading(pdf, doc, v.UniqueKey)
		for _, p := range v.Parts {
			pdf.SetFont("go", "B", 12)
			pdf.CellFormat(0, lineH+1, fmt.Sprintf("Part %s (%d/%d)", p.Info.Title, p.Info.DifficultyGenerated, p.Info.DifficultyTotal), "", 1, "L", false, 0, "")
			pdf.SetFont("go", "", 11)
			for _, m := range p.Material {
				pdf.CellFormat(20, lineH, m.Position, "1", 0, "C", false, 0, "")
				pdf.MultiCell(0, lineH, " "+answerText(p.Info.AnswerType, m), "1", "L", false)
			}
			pdf.Ln(2)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	return output(pdf)
}

func answerText(typ taskbank.AnswerType, m variant.Material) string {
	if typ == taskbank.AnswerChoice {
		for i, o := range m.Options {
			if o.IsAnswer {
				return fmt.Sprintf("%d) %s", i+1, o.Content)
			}
		}
		return "-"
	}
	words := make([]string, 0, len(m.Options))
	for _, o := range m.Answers() {
		words = append(words, o.Content)
	}
	return strings.Join(words, " / ")
}
