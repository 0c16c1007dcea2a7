package report

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
)

func sampleAnalysis() *analyzer.Analysis {
	scored := func(uplift, hope float64, sentiment string) analyzer.Result {
		return analyzer.Result{
			Sentiment:          sentiment,
			OverallHopefulness: uplift,
			Emotions:           analyzer.Emotions{Hope: hope, Joy: 0.5},
		}
	}
	return &analyzer.Analysis{
		Prompts: []analyzer.Prompt{
			{ID: "v1-comprehensive", Name: "Comprehensive"},
			{ID: "v2-solutions", Name: "Solutions"},
		},
		ResultsByPrompt: map[string]*analyzer.PromptResults{
			"v1-comprehensive": {
				Results:    []analyzer.Result{scored(0.8, 0.9, "positive"), scored(0.4, 0.3, "neutral"), analyzer.Fallback(2)},
				TokensUsed: 1200,
				Fallbacks:  1,
			},
			"v2-solutions": {
				Results:    []analyzer.Result{scored(0.6, 0.5, "positive"), scored(0.6, 0.7, "positive"), scored(0.3, 0.1, "negative")},
				TokensUsed: 1100,
			},
		},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompare(t *testing.T) {
	got, err := Compare(sampleAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "v1-comprehensive" || got[1].Name != "Solutions" {
		t.Fatalf("unexpected order: %+v", got)
	}

	v1 := got[0]
	if v1.Articles != 3 || v1.Fallbacks != 1 || v1.Positive != 1 {
		t.Fatalf("unexpected v1 counts: %+v", v1)
	}
	if !near(v1.MeanUplift, 0.6) || !near(v1.MeanEmotions.Hope, 0.6) {
		t.Fatalf("fallbacks must not dilute means, got uplift %f hope %f", v1.MeanUplift, v1.MeanEmotions.Hope)
	}

	v2 := got[1]
	if !near(v2.MeanUplift, 0.5) || v2.Positive != 2 || v2.TokensUsed != 1100 {
		t.Fatalf("unexpected v2 summary: %+v", v2)
	}
}

func TestCompare_Empty(t *testing.T) {
	if _, err := Compare(nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := Compare(&analyzer.Analysis{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCompare_AllFallbacks(t *testing.T) {
	a := &analyzer.Analysis{
		Prompts:         []analyzer.Prompt{{ID: "p"}},
		ResultsByPrompt: map[string]*analyzer.PromptResults{"p": {Results: analyzer.Fallbacks(2)}},
	}
	got, err := Compare(a)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Fallbacks != 2 || got[0].MeanUplift != 0 || got[0].Name != "p" {
		t.Fatalf("unexpected summary: %+v", got[0])
	}
}

func TestRender(t *testing.T) {
	summaries, err := Compare(sampleAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	r := NewChartRenderer()

	var buf bytes.Buffer
	if err := r.Render(&buf, summaries); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 1600 || img.Bounds().Dy() != int(r.height(2)) {
		t.Fatalf("unexpected size %v", img.Bounds())
	}

	path := filepath.Join(t.TempDir(), "compare.png")
	if err := r.RenderPNG(summaries, path); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("expected a PNG file, got %v", err)
	}

	if err := r.Render(&buf, nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
