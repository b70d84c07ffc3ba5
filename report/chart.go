package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	marginLeft   = 90.0
	marginRight  = 30.0
	marginTop    = 55.0
	marginBottom = 115.0

	lineMarkerRadius    = 4.5
	scatterMarkerRadius = 7.0
	maxDateTicks        = 8
)

// Marker is the glyph drawn at every data point
type Marker int

const (
	MarkerCircle Marker = iota
	MarkerTriangleUp
	MarkerSquare
	MarkerStar
	MarkerDiamond
	MarkerTriangleDown
	MarkerTriangleLeft
	MarkerTriangleRight
	MarkerPlus
	MarkerCross
	MarkerHexagon
	markerCount
)

// tab10, used for color names the chart does not know
var fallbackPalette = []color.RGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
	{0xe3, 0x77, 0xc2, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff},
	{0xbc, 0xbd, 0x22, 0xff},
	{0x17, 0xbe, 0xcf, 0xff},
}

// Chart renders series as a weight-over-time plot
type Chart struct {
	Width  int
	Height int
	Title  string
	XLabel string
	YLabel string
}

// NewChart returns a chart with the usage report labels
func NewChart(width, height int) *Chart {
	return &Chart{
		Width:  width,
		Height: height,
		Title:  "Filament Usage (Last Year)",
		XLabel: "Date",
		YLabel: "Weight (grams)",
	}
}

type fonts struct {
	title, label, tick font.Face
}

func loadFonts() (*fonts, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 100, Hinting: font.HintingNone})
	}
	return &fonts{title: face(16), label: face(14), tick: face(10)}, nil
}

// style is how one series is drawn
type style struct {
	line   color.Color
	face   color.Color
	edge   color.Color
	dotted bool
	marker Marker
}

// ColorFor maps a filament color name to a draw color. ok is false when
// the name is unknown.
func ColorFor(name string) (color.RGBA, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	c, ok := colornames.Map[key]
	return c, ok
}

// MarkersByType assigns one marker per material type, in sorted type order
func MarkersByType(series []Series) map[string]Marker {
	var types []string
	seen := make(map[string]bool)
	for _, s := range series {
		if !seen[s.Type] {
			seen[s.Type] = true
			types = append(types, s.Type)
		}
	}
	sort.Strings(types)

	out := make(map[string]Marker, len(types))
	for i, t := range types {
		out[t] = Marker(i % int(markerCount))
	}
	return out
}

func stylesFor(series []Series) []style {
	markers := MarkersByType(series)
	out := make([]style, len(series))
	for i, s := range series {
		st := style{marker: markers[s.Type]}
		if strings.EqualFold(s.Color, "white") {
			st.line = colornames.Grey
			st.face = color.White
			st.edge = color.Black
			st.dotted = true
		} else {
			c, ok := ColorFor(s.Color)
			if !ok {
				c = fallbackPalette[i%len(fallbackPalette)]
			}
			st.line, st.face, st.edge = c, c, c
		}
		out[i] = st
	}
	return out
}

// bounds is the data range shown on the axes
type bounds struct {
	xmin, xmax time.Time
	ymin, ymax float64
}

func dataBounds(series []Series) bounds {
	var b bounds
	first := true
	maxW := 0.0
	for _, s := range series {
		for _, p := range s.Points {
			if first || p.Date.Before(b.xmin) {
				b.xmin = p.Date
			}
			if first || p.Date.After(b.xmax) {
				b.xmax = p.Date
			}
			first = false
			maxW = math.Max(maxW, p.Weight)
		}
	}
	if !b.xmax.After(b.xmin) {
		b.xmin = b.xmin.AddDate(0, 0, -1)
		b.xmax = b.xmax.AddDate(0, 0, 1)
	}
	pad := b.xmax.Sub(b.xmin) / 25
	b.xmin = b.xmin.Add(-pad)
	b.xmax = b.xmax.Add(pad)

	if maxW <= 0 {
		maxW = 1
	}
	b.ymin = 0
	b.ymax = maxW * 1.1
	return b
}

// niceStep rounds a raw tick step to 1, 2 or 5 times a power of ten
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	switch f := raw / base; {
	case f <= 1:
		return base
	case f <= 2:
		return 2 * base
	case f <= 5:
		return 5 * base
	default:
		return 10 * base
	}
}

// ValueTicks returns evenly spaced round values covering [lo, hi]
func ValueTicks(lo, hi float64, n int) []float64 {
	step := niceStep((hi - lo) / float64(n))
	var ticks []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		ticks = append(ticks, v)
	}
	return ticks
}

// DateTicks returns at most max whole days between from and to
func DateTicks(from, to time.Time, max int) []time.Time {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	if start.Before(from) {
		start = start.AddDate(0, 0, 1)
	}
	days := int(to.Sub(start).Hours()/24) + 1
	step := 1
	if days > max {
		step = int(math.Ceil(float64(days) / float64(max)))
	}
	var ticks []time.Time
	for t := start; !t.After(to); t = t.AddDate(0, 0, step) {
		ticks = append(ticks, t)
	}
	return ticks
}

// Render draws the series and writes a PNG to w
func (c *Chart) Render(series []Series, w io.Writer) error {
	if len(series) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	fs, err := loadFonts()
	if err != nil {
		return err
	}

	dc := gg.NewContext(c.Width, c.Height)
	dc.SetColor(color.White)
	dc.Clear()

	left, top := marginLeft, marginTop
	plotW := float64(c.Width) - marginLeft - marginRight
	plotH := float64(c.Height) - marginTop - marginBottom
	b := dataBounds(series)

	px := func(t time.Time) float64 {
		return left + float64(t.Sub(b.xmin))/float64(b.xmax.Sub(b.xmin))*plotW
	}
	py := func(v float64) float64 {
		return top + plotH - (v-b.ymin)/(b.ymax-b.ymin)*plotH
	}

	// grid and ticks
	dc.SetFontFace(fs.tick)
	dc.SetLineWidth(1)
	for _, v := range ValueTicks(b.ymin, b.ymax, 6) {
		y := py(v)
		c.gridLine(dc, left, y, left+plotW, y)
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(formatWeight(v), left-8, y, 1, 0.35)
	}
	for _, t := range DateTicks(b.xmin, b.xmax, maxDateTicks) {
		x := px(t)
		c.gridLine(dc, x, top, x, top+plotH)
		dc.SetColor(color.Black)
		dc.Push()
		dc.RotateAbout(gg.Radians(-45), x, top+plotH+8)
		dc.DrawStringAnchored(t.Format("2006-01-02"), x, top+plotH+8, 1, 0.5)
		dc.Pop()
	}

	// frame
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(left, top, plotW, plotH)
	dc.Stroke()

	styles := stylesFor(series)
	for i, s := range series {
		st := styles[i]
		if len(s.Points) == 1 {
			p := s.Points[0]
			drawMarker(dc, st, px(p.Date), py(p.Weight), scatterMarkerRadius)
			continue
		}

		dc.SetColor(st.line)
		dc.SetLineWidth(2)
		if st.dotted {
			dc.SetDash(2, 4)
		}
		for j, p := range s.Points {
			if j == 0 {
				dc.MoveTo(px(p.Date), py(p.Weight))
			} else {
				dc.LineTo(px(p.Date), py(p.Weight))
			}
		}
		dc.Stroke()
		dc.SetDash()
		for _, p := range s.Points {
			drawMarker(dc, st, px(p.Date), py(p.Weight), lineMarkerRadius)
		}
	}

	c.drawLegend(dc, fs.tick, series, styles, left+10, top+10)

	// labels
	dc.SetColor(color.Black)
	dc.SetFontFace(fs.title)
	dc.DrawStringAnchored(c.Title, float64(c.Width)/2, marginTop/2, 0.5, 0.5)
	dc.SetFontFace(fs.label)
	dc.DrawStringAnchored(c.XLabel, left+plotW/2, float64(c.Height)-15, 0.5, 0)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 20, top+plotH/2)
	dc.DrawStringAnchored(c.YLabel, 20, top+plotH/2, 0.5, 0.5)
	dc.Pop()

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

func (c *Chart) gridLine(dc *gg.Context, x1, y1, x2, y2 float64) {
	dc.SetRGBA(0, 0, 0, 0.3)
	dc.SetDash(4, 4)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
	dc.SetDash()
}

func (c *Chart) drawLegend(dc *gg.Context, face font.Face, series []Series, styles []style, x, y float64) {
	const rowH, sample, pad = 18.0, 30.0, 8.0

	dc.SetFontFace(face)
	maxW := 0.0
	for i := range series {
		w, _ := dc.MeasureString(series[i].Label())
		maxW = math.Max(maxW, w)
	}
	boxW := pad*3 + sample + maxW
	boxH := pad*2 + rowH*float64(len(series))

	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(x, y, boxW, boxH)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.4)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, boxW, boxH)
	dc.Stroke()

	for i := range series {
		st := styles[i]
		cy := y + pad + rowH*float64(i) + rowH/2
		sx := x + pad

		if len(series[i].Points) > 1 {
			dc.SetColor(st.line)
			dc.SetLineWidth(2)
			if st.dotted {
				dc.SetDash(2, 4)
			}
			dc.DrawLine(sx, cy, sx+sample, cy)
			dc.Stroke()
			dc.SetDash()
		}
		drawMarker(dc, st, sx+sample/2, cy, lineMarkerRadius)

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(series[i].Label(), sx+sample+pad, cy, 0, 0.35)
	}
}

func drawMarker(dc *gg.Context, st style, x, y, r float64) {
	dc.Push()
	defer dc.Pop()

	switch st.marker {
	case MarkerCircle:
		dc.DrawCircle(x, y, r)
	case MarkerTriangleUp:
		dc.DrawRegularPolygon(3, x, y, r*1.2, 0)
	case MarkerSquare:
		dc.DrawRectangle(x-r, y-r, 2*r, 2*r)
	case MarkerStar:
		drawStar(dc, x, y, r*1.3)
	case MarkerDiamond:
		dc.DrawRegularPolygon(4, x, y, r*1.2, math.Pi/4)
	case MarkerTriangleDown:
		dc.DrawRegularPolygon(3, x, y, r*1.2, math.Pi)
	case MarkerTriangleLeft:
		dc.DrawRegularPolygon(3, x, y, r*1.2, -math.Pi/2)
	case MarkerTriangleRight:
		dc.DrawRegularPolygon(3, x, y, r*1.2, math.Pi/2)
	case MarkerPlus, MarkerCross:
		if st.marker == MarkerCross {
			dc.RotateAbout(math.Pi/4, x, y)
		}
		arm := r * 0.4
		dc.DrawRectangle(x-r, y-arm, 2*r, 2*arm)
		dc.DrawRectangle(x-arm, y-r, 2*arm, 2*r)
	default:
		dc.DrawRegularPolygon(6, x, y, r, 0)
	}

	dc.SetColor(st.face)
	dc.FillPreserve()
	dc.SetColor(st.edge)
	dc.SetLineWidth(1)
	dc.Stroke()
}

func drawStar(dc *gg.Context, x, y, r float64) {
	inner := r * 0.45
	for i := 0; i < 10; i++ {
		radius := r
		if i%2 == 1 {
			radius = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		px, py := x+radius*math.Cos(a), y+radius*math.Sin(a)
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
}

func formatWeight(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
