package analyzer

import (
	"math"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"fenced object", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"prose around array", "Here you go: [1, 2] hope it helps", "[1, 2]"},
		{"object containing array", `{"a": [1]}`, `{"a": [1]}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSON(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseResponse_AlignsByArticleIndex(t *testing.T) {
	text := `[
		{"article_index": 2, "sentiment": "negative", "reasoning": "third"},
		{"article_index": 0, "sentiment": "POSITIVE", "reasoning": "first"}
	]`
	out := parseResponse(text, []string{"p"}, 3)["p"]
	if len(out.results) != 3 || out.fallbacks != 1 {
		t.Fatalf("expected 3 results with 1 fallback, got %d/%d", len(out.results), out.fallbacks)
	}
	if out.results[0].Reasoning != "first" || out.results[0].Sentiment != "positive" {
		t.Fatalf("unexpected slot 0: %+v", out.results[0])
	}
	if !out.results[1].Fallback {
		t.Fatal("expected slot 1 to be a fallback")
	}
	if out.results[2].Reasoning != "third" {
		t.Fatalf("unexpected slot 2: %+v", out.results[2])
	}
}

func TestParseResponse_OneBasedIndices(t *testing.T) {
	text := `[{"article_index": 1, "reasoning": "one"}, {"article_index": 2, "reasoning": "two"}]`
	out := parseResponse(text, []string{"p"}, 2)["p"]
	if out.fallbacks != 0 || out.results[0].Reasoning != "one" || out.results[1].Reasoning != "two" {
		t.Fatalf("unexpected results: %+v", out.results)
	}
}

func TestParseResponse_PartialZeroBasedIsNotShifted(t *testing.T) {
	text := `[{"article_index": 1, "reasoning": "second"}, {"article_index": 2, "reasoning": "third"}]`
	out := parseResponse(text, []string{"p"}, 3)["p"]
	if !out.results[0].Fallback || out.fallbacks != 1 {
		t.Fatalf("expected slot 0 to be a fallback, got %+v", out.results[0])
	}
	if out.results[1].Reasoning != "second" || out.results[2].Reasoning != "third" {
		t.Fatalf("indices shifted: %q %q", out.results[1].Reasoning, out.results[2].Reasoning)
	}
}

func TestParseResponse_TopLevelArrayNeedsSinglePrompt(t *testing.T) {
	out := parseResponse(`[{"reasoning": "x"}]`, []string{"a", "b"}, 1)
	if out["a"].fallbacks != 1 || out["b"].fallbacks != 1 {
		t.Fatal("an unlabeled array cannot be attributed to one of several prompts")
	}
}

func TestParseResponse_SingleObject(t *testing.T) {
	out := parseResponse(`{"sentiment": "positive", "reasoning": "solo"}`, []string{"p"}, 1)["p"]
	if out.fallbacks != 0 || out.results[0].Reasoning != "solo" {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestRawResult_Validation(t *testing.T) {
	text := `[{
		"sentiment": "joyful",
		"confidence_score": "0.7",
		"emotions": {"hope": 1.4, "awe": -1, "joy": "0.5"},
		"categories": "Health, health , Science",
		"solution_focused": true,
		"source_credibility": "HIGH"
	}]`
	r := parseResponse(text, []string{"p"}, 1)["p"].results[0]

	if r.Sentiment != "neutral" {
		t.Fatalf("unknown sentiment should normalize to neutral, got %q", r.Sentiment)
	}
	if r.ConfidenceScore != 0.7 {
		t.Fatalf("expected numeric string parsed, got %v", r.ConfidenceScore)
	}
	if r.Emotions.Hope != 1 || r.Emotions.Awe != 0 || r.Emotions.Joy != 0.5 || r.Emotions.Relief != 0 {
		t.Fatalf("unexpected emotions: %+v", r.Emotions)
	}
	if len(r.Categories) != 2 || r.Categories[0] != "health" || r.Categories[1] != "science" {
		t.Fatalf("unexpected categories: %v", r.Categories)
	}
	if r.SolutionFocused != "yes" || r.SourceCredibility != "high" {
		t.Fatalf("unexpected categorical fields: %q %q", r.SolutionFocused, r.SourceCredibility)
	}
	if r.EvidenceQuality != "moderate" || r.AgeAppropriate != "all" {
		t.Fatal("missing fields should take the neutral defaults")
	}
	want := UpliftScore(r.Emotions, r.Sentiment, r.ConfidenceScore)
	if math.Abs(r.OverallHopefulness-want) > 1e-9 {
		t.Fatalf("expected derived hopefulness %v, got %v", want, r.OverallHopefulness)
	}
}

func TestFallback(t *testing.T) {
	f := Fallback(7)
	if f.ArticleIndex != 7 || f.ConfidenceScore != 0.5 || f.Categories[0] != "unknown" {
		t.Fatalf("unexpected fallback: %+v", f)
	}
	if f.GeographicRelevance != "minimal" || f.TruthSeeking != "no" || f.OverallHopefulness != 0 {
		t.Fatalf("unexpected fallback: %+v", f)
	}
	if len(Fallbacks(3)) != 3 || Fallbacks(3)[2].ArticleIndex != 2 {
		t.Fatal("expected indexed fallbacks")
	}
}

func TestUpliftScore(t *testing.T) {
	all := Emotions{1, 1, 1, 1, 1, 1}
	if got := UpliftScore(all, "positive", 1); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := UpliftScore(Emotions{}, "neutral", 0.9); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	// 0.7 * 2.0/8.5 with no positive sentiment
	if got := UpliftScore(Emotions{Hope: 1}, "negative", 0.9); math.Abs(got-0.7*2.0/8.5) > 1e-9 {
		t.Fatalf("unexpected hope-only score %v", got)
	}
	if got := UpliftScore(Emotions{}, "positive", 0.5); math.Abs(got-0.15) > 1e-9 {
		t.Fatalf("expected 0.15 from sentiment only, got %v", got)
	}
}
