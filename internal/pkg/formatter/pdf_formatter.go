package formatter

import (
	"bytes"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// internal gofpdf name of the UTF-8 capable font
	pdfFontName = "DejaVuSans"

	// the container image copies fonts next to the binary
	pdfFontRuntimePath = "ttf/DejaVuSans.ttf"
	pdfFontSourcePath  = "internal/pkg/formatter/ttf/DejaVuSans.ttf"
)

type PDFFormatter struct{}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

// resolveFontPath looks for DejaVuSans in the runtime layout, then the source tree.
func resolveFontPath() string {
	for _, p := range []string{pdfFontRuntimePath, pdfFontSourcePath} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (mf *PDFFormatter) Format(t *Transcript) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	fontName := "Arial"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if fontPath := resolveFontPath(); fontPath != "" {
		pdf.AddUTF8Font(pdfFontName, "", fontPath)
		pdf.AddUTF8Font(pdfFontName, "B", fontPath)
		fontName = pdfFontName
		translate = func(s string) string { return s }
	}

	pdf.SetFont(fontName, "B", 18)
	pdf.Cell(0, 10, translate(t.title()))
	pdf.Ln(10)

	pdf.SetFont(fontName, "", 9)
	pdf.Cell(0, 6, translate(t.subtitle()))
	pdf.Ln(10)

	for _, m := range t.Messages {
		pdf.SetFont(fontName, "B", 11)
		pdf.Cell(0, 6, translate(messageHeading(m)))
		pdf.Ln(7)

		pdf.SetFont(fontName, "", 11)
		_, lineHeight := pdf.GetFontSize()
		pdf.MultiCell(0, lineHeight*1.5, translate(m.Text), "", "", false)

		if s := sources(m); s != "" {
			pdf.SetFont(fontName, "", 8)
			pdf.MultiCell(0, 4, translate(s), "", "", false)
		}
		pdf.Ln(3)
	}

	if lines := applicationLines(t.Application); len(lines) > 0 {
		pdf.SetFont(fontName, "B", 14)
		pdf.Cell(0, 8, "Application")
		pdf.Ln(9)
		pdf.SetFont(fontName, "", 11)
		pdf.MultiCell(0, 6, translate(strings.Join(lines, "\n")), "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (mf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (mf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
