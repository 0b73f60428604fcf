package report

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/signintech/gopdf"
)

// ErrFontUnavailable is returned when none of the configured fonts load.
var ErrFontUnavailable = errors.New("no usable PDF font")

// DefaultFontPaths are common DejaVu Sans locations on Linux distributions.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

// Disclaimer closes every exported document.
const Disclaimer = "NeuroScanX provides triage guidance only and does not diagnose. " +
	"Seek professional care for urgent or worsening symptoms."

// BlockStyle selects font size and spacing for a document block.
type BlockStyle int

const (
	StyleTitle BlockStyle = iota
	StyleMeta
	StyleHeading
	StyleBody
	StyleBullet
	StyleFootnote
)

// Block is one paragraph of the exported document.
type Block struct {
	Style BlockStyle
	Text  string
}

const (
	fontFamily  = "DejaVu"
	pageMargin  = 40.0
	textWidth   = 595.0 - 2*pageMargin
	pageBottom  = 842.0 - pageMargin
	bulletGlyph = "• "
)

var styleMetrics = map[BlockStyle]struct {
	size, line, after float64
}{
	StyleTitle:    {size: 20, line: 26, after: 8},
	StyleMeta:     {size: 10, line: 14, after: 2},
	StyleHeading:  {size: 14, line: 18, after: 4},
	StyleBody:     {size: 11, line: 14, after: 8},
	StyleBullet:   {size: 11, line: 14, after: 2},
	StyleFootnote: {size: 8, line: 11, after: 0},
}

// Document lays out rep as ordered blocks. Optional sections are included
// only when present.
func Document(rep *domain.Report) []Block {
	res := rep.Result
	badge, _ := BadgeFor(res.TriageLevel)

	var doc []Block
	add := func(style BlockStyle, text string) {
		doc = append(doc, Block{Style: style, Text: text})
	}
	section := func(title, body string) {
		if !present(body) {
			return
		}
		add(StyleHeading, title)
		add(StyleBody, body)
	}
	list := func(title string, items []string) {
		add(StyleHeading, title)
		if len(items) == 0 {
			add(StyleBullet, bulletGlyph+"None reported.")
			return
		}
		for _, item := range items {
			add(StyleBullet, bulletGlyph+item)
		}
	}

	add(StyleTitle, "NeuroScanX Clinical Triage Report")
	add(StyleMeta, fmt.Sprintf("Report ID: %s", rep.ID))
	add(StyleMeta, fmt.Sprintf("Date: %s", rep.CreatedAt.Format("2006-01-02 15:04")))
	add(StyleMeta, fmt.Sprintf("Triage: %s", badge.Label))

	section("AI Clinical Reasoning", res.TriageReasoning)

	add(StyleHeading, "Health Radar")
	for i, v := range res.HealthRadar.Values() {
		add(StyleBullet, fmt.Sprintf("%s%s: %g / 100", bulletGlyph, radarName(i), v))
	}

	if res.HasRedFlags() {
		list("Critical Alerts", res.RedFlags)
	}

	section("Chief Complaint", res.ChiefComplaint)
	section("Symptom Breakdown", res.SymptomAnalysis)
	section("Trend Analysis", res.TimelineAnalysis)
	section("Visual Findings", res.VisualObservations)
	section("Visual Comparison", res.ImageComparison)
	if present(res.MedicineAnalysis) {
		section("Safe Medicine ID", res.MedicineAnalysis+" ("+MedicineNote+")")
	}
	section("Voice Transcript Summary", res.VoiceSummary)

	list("Differential Considerations", res.Differentials)
	list("Recommended Action", res.HomeCare)

	add(StyleHeading, "SOAP Note")
	for _, s := range ClinicianSections(res) {
		if s.ID == "voice" {
			continue
		}
		add(StyleBody, s.Title+": "+s.Body)
	}

	add(StyleFootnote, Disclaimer)
	return doc
}

// radarName is the unabbreviated axis name.
func radarName(i int) string {
	names := [5]string{"Hydration", "Fatigue", "Stress", "Inflammation", "Severity"}
	return names[i]
}

// PDFRenderer writes reports as A4 PDF documents.
type PDFRenderer struct {
	fontPaths []string
}

// NewPDFRenderer creates a renderer trying fontPaths in order.
// Empty fontPaths selects DefaultFontPaths.
func NewPDFRenderer(fontPaths []string) *PDFRenderer {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &PDFRenderer{fontPaths: fontPaths}
}

// FileName is the download name for rep.
func FileName(rep *domain.Report) string {
	return fmt.Sprintf("neuroscanx_report_%s.pdf", rep.ID)
}

// Render produces the PDF bytes for rep.
func (r *PDFRenderer) Render(rep *domain.Report) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := r.loadFont(&pdf); err != nil {
		return nil, err
	}

	pdf.SetY(pageMargin)
	for _, block := range Document(rep) {
		if err := writeBlock(&pdf, block); err != nil {
			return nil, fmt.Errorf("write PDF block: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		slog.Debug("PDF font loaded", "path", path)
		return nil
	}
	return fmt.Errorf("%w: tried %s: %v", ErrFontUnavailable, strings.Join(r.fontPaths, ", "), lastErr)
}

func writeBlock(pdf *gopdf.GoPdf, b Block) error {
	m := styleMetrics[b.Style]
	if err := pdf.SetFont(fontFamily, "", m.size); err != nil {
		return err
	}
	if b.Style == StyleHeading {
		pdf.Br(4)
	}

	for _, para := range strings.Split(b.Text, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines, err := pdf.SplitText(para, textWidth)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if pdf.GetY()+m.line > pageBottom {
				pdf.AddPage()
				pdf.SetY(pageMargin)
			}
			pdf.SetX(pageMargin)
			if err := pdf.Cell(nil, line); err != nil {
				return err
			}
			pdf.Br(m.line)
		}
	}
	pdf.Br(m.after)
	return nil
}
