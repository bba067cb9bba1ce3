package diagram

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// A4 landscape, in mm.
const (
	pdfPageW   = 297.0
	pdfPageH   = 210.0
	pdfMargin  = 10.0
	pdfTitleH  = 18.0
	pdfLegendW = 55.0
)

// RenderPDF draws a Layout on one landscape A4 page: blocks, arrows, labels
// and the legend on the right. Emoji icons are not drawn; core fonts cannot
// encode them.
func RenderPDF(l *Layout) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	for i, line := range strings.Split(l.Title, "\n") {
		pdf.SetXY(pdfMargin, pdfMargin+float64(i)*6)
		pdf.CellFormat(pdfPageW-2*pdfMargin, 6, tr(line), "", 0, "C", false, 0, "")
	}

	m := newPageMap(l.Bounds)

	for _, a := range l.Arrows {
		drawArrow(pdf, m, a)
	}

	pdf.SetLineWidth(0.3)
	pdf.SetDrawColor(0x33, 0x33, 0x33)
	pdf.SetFont("Arial", "", 8)
	for _, blk := range l.Blocks {
		x, y := m.point(Point{blk.X, blk.Top()})
		w, h := blk.Width*m.scale, blk.Height*m.scale
		setFill(pdf, StateColor(blk.State))
		pdf.Rect(x, y, w, h, "FD")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(x, y)
		pdf.CellFormat(w, h, tr(DisplayName(blk.Name)), "", 0, "C", false, 0, "")
	}

	for _, lbl := range l.Labels {
		x, y := m.point(lbl.At)
		style := ""
		switch lbl.Kind {
		case LabelRowTitle, LabelInbound, LabelOutbound:
			style = "B"
		}
		if lbl.Italic {
			style += "I"
		}
		pdf.SetFont("Arial", style, 9)
		setText(pdf, lbl.Color)
		text := tr(lbl.Text)
		switch lbl.Kind {
		case LabelRowTitle:
			x -= pdf.GetStringWidth(text)
		case LabelInbound, LabelSludge, LabelDestination:
			x -= pdf.GetStringWidth(text) / 2
		}
		pdf.Text(x, y, text)
	}

	drawLegend(pdf, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("diagram: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// pageMap converts diagram units (y up) to page millimetres (y down).
type pageMap struct {
	b     Bounds
	scale float64
	left  float64
	top   float64
}

func newPageMap(b Bounds) pageMap {
	availW := pdfPageW - 2*pdfMargin - pdfLegendW
	availH := pdfPageH - 2*pdfMargin - pdfTitleH
	scale := math.Min(availW/b.Width(), availH/b.Height())
	return pageMap{b: b, scale: scale, left: pdfMargin, top: pdfMargin + pdfTitleH}
}

func (m pageMap) point(p Point) (float64, float64) {
	return m.left + (p.X-m.b.MinX)*m.scale, m.top + (m.b.MaxY-p.Y)*m.scale
}

// controlPoint is the quadratic control point of an arc of the given
// curvature between start and end.
func controlPoint(a Arrow) Point {
	mid := Point{(a.Start.X + a.End.X) / 2, (a.Start.Y + a.End.Y) / 2}
	dx, dy := a.End.X-a.Start.X, a.End.Y-a.Start.Y
	return Point{mid.X + a.Curvature*dy, mid.Y - a.Curvature*dx}
}

func drawArrow(pdf *gofpdf.Fpdf, m pageMap, a Arrow) {
	color := WaterColor
	switch a.Kind {
	case ArrowSludge, ArrowSludgeLine:
		color = SludgeColor
		pdf.SetDashPattern([]float64{1.5, 1}, 0)
	case ArrowInbound:
		color = "#000000"
	}
	setDraw(pdf, color)
	pdf.SetLineWidth(0.4)

	x0, y0 := m.point(a.Start)
	x1, y1 := m.point(a.End)
	tail := Point{x0, y0}
	if a.Curvature != 0 {
		cx, cy := m.point(controlPoint(a))
		pdf.Curve(x0, y0, cx, cy, x1, y1, "D")
		tail = Point{cx, cy}
	} else {
		pdf.Line(x0, y0, x1, y1)
	}
	pdf.SetDashPattern([]float64{}, 0)

	// arrow head
	ang := math.Atan2(y1-tail.Y, x1-tail.X)
	const size = 2.0
	setFill(pdf, color)
	pdf.Polygon([]gofpdf.PointType{
		{X: x1, Y: y1},
		{X: x1 - size*math.Cos(ang-0.4), Y: y1 - size*math.Sin(ang-0.4)},
		{X: x1 - size*math.Cos(ang+0.4), Y: y1 - size*math.Sin(ang+0.4)},
	}, "F")
}

func drawLegend(pdf *gofpdf.Fpdf, tr func(string) string) {
	x := pdfPageW - pdfMargin - pdfLegendW + 5
	y := pdfMargin + pdfTitleH
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(x, y, tr("Légende"))
	pdf.SetFont("Arial", "", 8)
	pdf.SetLineWidth(0.3)
	for i, e := range Legend() {
		ey := y + 5 + float64(i)*6
		if e.Line {
			setDraw(pdf, e.Color)
			if e.Dashed {
				pdf.SetDashPattern([]float64{1.5, 1}, 0)
			}
			pdf.Line(x, ey-1.5, x+6, ey-1.5)
			pdf.SetDashPattern([]float64{}, 0)
		} else {
			pdf.SetDrawColor(0x33, 0x33, 0x33)
			setFill(pdf, e.Color)
			pdf.Rect(x, ey-3.5, 4, 4, "FD")
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(x+8, ey, tr(e.Label))
	}
}

func setFill(pdf *gofpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetFillColor(r, g, b)
}

func setDraw(pdf *gofpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetDrawColor(r, g, b)
}

func setText(pdf *gofpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetTextColor(r, g, b)
}

// hexRGB parses "#RRGGBB"; anything else is black.
func hexRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
