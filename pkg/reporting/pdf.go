package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Fixed report copy.
const (
	ReportTitle     = "Relatório de Análise - Hermes"
	AnalysisHeading = "Análise Detalhada"
	datePrefix      = "Data: "
)

// Page geometry in millimetres.
const (
	marginX          = 15.0
	titleY           = 15.0
	dateY            = 22.0
	imageY           = 30.0
	imageVertMargin  = 40.0 // header plus bottom margin reserved around the image
	headingY         = 20.0
	analysisY        = 30.0
	bottomMargin     = 15.0
	continuationTopY = 20.0
	bodyFontSize     = 10.0
	lineHeightFactor = 1.15
	ptToMM           = 25.4 / 72
)

var (
	colorHeaderText = [3]int{40, 40, 40}
	fontFamily      = "Helvetica"
)

// ReportData is the input of a PDF composition.
type ReportData struct {
	Date         string
	Image        []byte // PNG bytes
	ImageWidth   int    // pixels
	ImageHeight  int    // pixels
	IncludeText  bool
	AnalysisText string
}

// Document is a composed PDF.
type Document struct {
	Data       []byte
	Pages      int
	PageWidth  float64
	PageHeight float64
}

// PDFGenerator handles PDF report generation.
type PDFGenerator struct {
	compress bool
}

// NewPDFGenerator creates a new PDF generator.
func NewPDFGenerator(compress bool) *PDFGenerator {
	return &PDFGenerator{compress: compress}
}

// Generate lays out the cover page with the chart snapshot and, when asked
// for, the analysis pages.
func (g *PDFGenerator) Generate(data *ReportData) (*Document, error) {
	if data.ImageWidth <= 0 || data.ImageHeight <= 0 {
		return nil, fmt.Errorf("image has invalid size %dx%d", data.ImageWidth, data.ImageHeight)
	}

	// Text reads better in portrait; a lone chart gets the page width.
	orientation := "L"
	if data.IncludeText {
		orientation = "P"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetCompression(g.compress)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	g.writeCoverPage(pdf, tr, data)

	if data.IncludeText && data.AnalysisText != "" {
		g.writeAnalysisPages(pdf, tr, CleanAnalysisText(data.AnalysisText))
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("compose PDF: %w", err)
	}

	pageWidth, pageHeight := pdf.GetPageSize()
	pages := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}

	return &Document{
		Data:       buf.Bytes(),
		Pages:      pages,
		PageWidth:  pageWidth,
		PageHeight: pageHeight,
	}, nil
}

// writeCoverPage writes the title, the date and the centred chart snapshot.
func (g *PDFGenerator) writeCoverPage(pdf *fpdf.Fpdf, tr func(string) string, data *ReportData) {
	pdf.AddPage()
	pageWidth, pageHeight := pdf.GetPageSize()

	pdf.SetFont(fontFamily, "", 16)
	pdf.SetTextColor(colorHeaderText[0], colorHeaderText[1], colorHeaderText[2])
	pdf.Text(marginX, titleY, tr(ReportTitle))

	pdf.SetFontSize(bodyFontSize)
	pdf.Text(marginX, dateY, tr(datePrefix+data.Date))

	box := fitImage(float64(data.ImageWidth), float64(data.ImageHeight),
		pageWidth-2*marginX, pageHeight-imageVertMargin)
	x := (pageWidth - box.width) / 2

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("chart", opts, bytes.NewReader(data.Image))
	pdf.ImageOptions("chart", x, imageY, box.width, box.height, false, opts, 0, "")
}

// writeAnalysisPages writes the heading and the wrapped analysis text,
// continuing on new pages once the bottom margin is reached.
func (g *PDFGenerator) writeAnalysisPages(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.AddPage()
	pageWidth, pageHeight := pdf.GetPageSize()

	pdf.SetFont(fontFamily, "B", 14)
	pdf.Text(marginX, headingY, tr(AnalysisHeading))

	pdf.SetFont(fontFamily, "", bodyFontSize)
	measure := func(s string) float64 { return pdf.GetStringWidth(tr(s)) }
	lines := wrapText(text, pageWidth-2*marginX, measure)

	lineHeight := bodyFontSize * lineHeightFactor * ptToMM
	y := analysisY
	for _, line := range lines {
		if y > pageHeight-bottomMargin {
			pdf.AddPage()
			y = continuationTopY
		}
		if line != "" {
			pdf.Text(marginX, y, tr(line))
		}
		y += lineHeight
	}
}

// imageBox is the drawn size of the snapshot in millimetres.
type imageBox struct {
	width  float64
	height float64
}

// fitImage scales an image to the full available width, falling back to the
// full available height when that would overflow vertically. The aspect
// ratio is preserved either way.
func fitImage(imgWidth, imgHeight, maxWidth, maxHeight float64) imageBox {
	width := maxWidth
	height := imgHeight * width / imgWidth
	if height > maxHeight {
		height = maxHeight
		width = imgWidth * height / imgHeight
	}
	return imageBox{width: width, height: height}
}

var markdownMarkers = strings.NewReplacer("#", "", "*", "")

// CleanAnalysisText drops markdown heading and emphasis markers and trims the
// surrounding whitespace.
func CleanAnalysisText(text string) string {
	return strings.TrimSpace(markdownMarkers.Replace(text))
}

// wrapText breaks text into lines no wider than maxWidth. Paragraph breaks
// are kept, words are split on spaces and words wider than a line are cut.
func wrapText(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := ""
		for _, word := range words {
			for measure(word) > maxWidth {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				head, tail := cutToWidth(word, maxWidth, measure)
				lines = append(lines, head)
				word = tail
			}
			if word == "" {
				continue
			}
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measure(candidate) <= maxWidth {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// cutToWidth returns the longest prefix of word that fits, at least one
// character, and the remainder.
func cutToWidth(word string, maxWidth float64, measure func(string) float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= maxWidth {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}
