package dedup

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

// titlePair builds two titles sharing `common` words, with `onlyA` extra
// words on the first title, giving a similarity of common/(common+onlyA).
func titlePair(common, onlyA int) (string, string) {
	var a, b []string
	for i := 0; i < common; i++ {
		w := fmt.Sprintf("w%d", i)
		a = append(a, w)
		b = append(b, w)
	}
	for i := 0; i < onlyA; i++ {
		a = append(a, fmt.Sprintf("x%d", i))
	}
	return strings.Join(a, " "), strings.Join(b, " ")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, Similarity("Solar Farm Opens", "solar farm opens"), 1.0)
	assert.Equal(t, Similarity("", "anything"), 0.0)
	assert.Equal(t, Similarity("a b", "c d"), 0.0)
	// {a b c} vs {a b d}: 2 shared out of 4
	assert.Equal(t, Similarity("a b c", "a b d"), 0.5)
}

func TestThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		common    int
		onlyA     int
		duplicate bool
	}{
		{"0.69", 69, 31, false},
		{"0.70", 7, 3, false},
		{"0.79", 79, 21, false},
		{"0.80", 4, 1, true},
		{"0.95", 19, 1, true},
	}

	d := New(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := titlePair(tt.common, tt.onlyA)
			want := float64(tt.common) / float64(tt.common+tt.onlyA)
			if got := Similarity(a, b); math.Abs(got-want) > 1e-12 {
				t.Fatalf("similarity: want %v, got %v", want, got)
			}

			out := d.Dedupe([]sources.Article{
				{Title: a, URL: "https://one.example/1"},
				{Title: b, URL: "https://two.example/2"},
			})
			gotDup := len(out) == 1
			if gotDup != tt.duplicate {
				t.Fatalf("duplicate: want %v, got %v", tt.duplicate, gotDup)
			}
		})
	}
}

func TestDedupe_URLMatchIsCaseAndSpaceInsensitive(t *testing.T) {
	d := New(DefaultThreshold)
	out, removed := d.DedupeExplain([]sources.Article{
		{Title: "Reef recovers", URL: "https://x.example/a"},
		{Title: "Completely different headline", URL: "  HTTPS://X.EXAMPLE/A "},
	})
	assert.Equal(t, len(out), 1)
	assert.Equal(t, len(removed), 1)
	assert.Equal(t, removed[0].Reason, ReasonURL)
}

func TestDedupe_EmptyKeysPassThrough(t *testing.T) {
	d := New(DefaultThreshold)
	out := d.Dedupe([]sources.Article{
		{Title: "", URL: ""},
		{Title: "", URL: ""},
		{Title: "Same", URL: ""},
		{Title: "", URL: "https://z.example"},
	})
	assert.Equal(t, len(out), 4)
}

func TestDedupe_KeepsOrderAndFirstSeen(t *testing.T) {
	d := New(DefaultThreshold)
	in := []sources.Article{
		{Title: "Wind power record in Denmark", URL: "u1", Provider: sources.AFP},
		{Title: "Village builds library", URL: "u2", Provider: sources.NewsAPI},
		{Title: "wind power record in denmark", URL: "u3", Provider: sources.NewsData},
	}
	out := d.Dedupe(in)
	assert.Equal(t, len(out), 2)
	assert.Equal(t, out[0].Provider, sources.AFP)
	assert.Equal(t, out[1].URL, "u2")
}

func TestDedupe_Idempotent(t *testing.T) {
	d := New(DefaultThreshold)
	in := []sources.Article{
		{Title: "a b c d e", URL: "1"},
		{Title: "a b c d e f", URL: "2"},
		{Title: "q r s", URL: "3"},
		{Title: "q r s", URL: "3"},
	}
	once := d.Dedupe(in)
	twice := d.Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestNew_InvalidThresholdFallsBack(t *testing.T) {
	assert.Equal(t, New(-1).Threshold(), DefaultThreshold)
	assert.Equal(t, New(1.5).Threshold(), DefaultThreshold)
	assert.Equal(t, New(0.9).Threshold(), 0.9)
}
