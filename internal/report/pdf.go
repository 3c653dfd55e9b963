package report

import (
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Page layout (A4 landscape in mm).
const (
	pageWidth    = 297.0
	margin       = 10.0
	titleHeight  = 10.0
	baseFontSize = 10.0
	minFontSize  = 3.0
	ptToMM       = 0.3528
)

// WriteFormationPDF renders a composed formation in a monospaced font on an
// A4 landscape page. The font shrinks until the widest line fits.
func WriteFormationPDF(w io.Writer, title, layout string) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, titleHeight, tr(title), "", 1, "L", false, 0, "")

	lines := strings.Split(layout, "\n")
	widest := ""
	for _, line := range lines {
		if len(line) > len(widest) {
			widest = line
		}
	}

	size := baseFontSize
	pdf.SetFont("Courier", "", size)
	available := pageWidth - 2*margin
	if width := pdf.GetStringWidth(widest); width > available {
		size = max(baseFontSize*available/width, minFontSize)
		pdf.SetFontSize(size)
	}

	lineHeight := size * ptToMM * 1.2
	for _, line := range lines {
		pdf.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}
