package report

import (
	"fmt"
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/fogleman/gg"
)

var promptColors = []string{"#4a9eff", "#ff4757", "#2ed573", "#ffa502", "#a66cff", "#70a1ff"}

var fontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"/Library/Fonts/Arial.ttf",
}

// ChartRenderer draws a grouped horizontal bar chart: one group per metric,
// one bar per prompt.
type ChartRenderer struct {
	Width     float64
	HeaderH   float64
	BarH      float64
	GroupGap  float64
	LabelW    float64
	FooterH   float64
	Pad       float64
	FontSize  float64
	TitleSize float64
	SmallSize float64

	now func() time.Time
}

// NewChartRenderer creates a 1600px wide renderer.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{
		Width:     1600,
		HeaderH:   100,
		BarH:      26,
		GroupGap:  22,
		LabelW:    200,
		FooterH:   70,
		Pad:       40,
		FontSize:  20,
		TitleSize: 30,
		SmallSize: 16,
		now:       time.Now,
	}
}

func (r *ChartRenderer) height(prompts int) float64 {
	group := float64(prompts)*r.BarH + r.GroupGap
	return 20 + r.HeaderH + 20 + float64(len(Metrics))*group + r.FooterH + 40
}

// Render writes the chart as PNG to w.
func (r *ChartRenderer) Render(w io.Writer, summaries []PromptSummary) error {
	dc, err := r.draw(summaries)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// RenderPNG writes the chart to path.
func (r *ChartRenderer) RenderPNG(summaries []PromptSummary, path string) error {
	dc, err := r.draw(summaries)
	if err != nil {
		return err
	}
	return dc.SavePNG(path)
}

func (r *ChartRenderer) draw(summaries []PromptSummary) (*gg.Context, error) {
	if len(summaries) == 0 {
		return nil, ErrNoData
	}
	height := r.height(len(summaries))
	dc := gg.NewContext(int(r.Width), int(height))

	dc.SetColor(hexColor("#0f0f20"))
	dc.Clear()

	y := r.drawTitle(dc, summaries)
	for _, m := range Metrics {
		y = r.drawGroup(dc, m, summaries, y)
	}
	r.drawFooter(dc, summaries, y)
	return dc, nil
}

func (r *ChartRenderer) drawTitle(dc *gg.Context, summaries []PromptSummary) float64 {
	dc.SetColor(hexColor("#1a1a3e"))
	dc.DrawRoundedRectangle(r.Pad, 20, r.Width-2*r.Pad, r.HeaderH, 12)
	dc.Fill()

	dc.SetColor(hexColor("#ffb400"))
	dc.DrawRectangle(r.Pad, 20, 4, r.HeaderH)
	dc.Fill()

	r.loadFont(dc, r.TitleSize)
	dc.SetColor(color.White)
	title := fmt.Sprintf("Prompt comparison · %s", r.now().Format("2006-01-02"))
	dc.DrawStringAnchored(title, r.Width/2, 20+r.HeaderH/2-10, 0.5, 0.5)

	r.loadFont(dc, r.SmallSize)
	x := r.Pad + 24
	for i, s := range summaries {
		dc.SetColor(hexColor(promptColors[i%len(promptColors)]))
		dc.DrawRectangle(x, 20+r.HeaderH-30, 14, 14)
		dc.Fill()
		dc.SetColor(hexColor("#aaaacc"))
		label := fmt.Sprintf("%s (%d articles)", s.Name, s.Articles)
		dc.DrawString(label, x+20, 20+r.HeaderH-18)
		tw, _ := dc.MeasureString(label)
		x += tw + 60
	}
	return 20 + r.HeaderH + 20
}

func (r *ChartRenderer) drawGroup(dc *gg.Context, m Metric, summaries []PromptSummary, y float64) float64 {
	groupH := float64(len(summaries)) * r.BarH

	dc.SetColor(hexColor(m.Color))
	dc.DrawRectangle(r.Pad, y, 4, groupH)
	dc.Fill()

	r.loadFont(dc, r.FontSize)
	dc.SetColor(hexColor("#c0c0d0"))
	dc.DrawStringAnchored(m.Label, r.Pad+16, y+groupH/2, 0, 0.35)

	barX := r.Pad + r.LabelW
	maxW := r.Width - barX - r.Pad - 80

	r.loadFont(dc, r.SmallSize)
	for i, s := range summaries {
		v := clamp(m.Value(s))
		by := y + float64(i)*r.BarH

		dc.SetColor(hexColor("#1a1a3e"))
		dc.DrawRectangle(barX, by+3, maxW, r.BarH-6)
		dc.Fill()

		dc.SetColor(hexColor(promptColors[i%len(promptColors)]))
		dc.DrawRectangle(barX, by+3, maxW*v, r.BarH-6)
		dc.Fill()

		dc.SetColor(hexColor("#e0e0e0"))
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", v), barX+maxW+12, by+r.BarH/2, 0, 0.35)
	}
	return y + groupH + r.GroupGap
}

func (r *ChartRenderer) drawFooter(dc *gg.Context, summaries []PromptSummary, y float64) {
	dc.SetColor(hexColor("#0a0a16"))
	dc.DrawRoundedRectangle(r.Pad, y, r.Width-2*r.Pad, r.FooterH, 8)
	dc.Fill()

	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = fmt.Sprintf("%s: %d fallback, %d positive, %d tokens", s.ID, s.Fallbacks, s.Positive, s.TokensUsed)
	}
	r.loadFont(dc, r.SmallSize)
	dc.SetColor(hexColor("#666688"))
	dc.DrawStringAnchored(strings.Join(parts, "  ·  "), r.Width/2, y+r.FooterH/2, 0.5, 0.5)
}

// loadFont keeps gg's built-in face when no system font is available.
func (r *ChartRenderer) loadFont(dc *gg.Context, size float64) {
	for _, p := range fontPaths {
		if err := dc.LoadFontFace(p, size); err == nil {
			return
		}
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func hexColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 8 {
		var r, g, b, a uint8
		fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a)
		return color.RGBA{r, g, b, a}
	}
	var cr, cg, cb uint8
	fmt.Sscanf(hex, "%02x%02x%02x", &cr, &cg, &cb)
	return color.RGBA{cr, cg, cb, 255}
}
