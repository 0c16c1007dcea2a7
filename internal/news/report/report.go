// Package report compares scoring prompts over the same articles and renders
// the comparison as a PNG chart.
package report

import (
	"errors"
	"sort"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
)

// ErrNoData is returned when there is nothing to compare.
var ErrNoData = errors.New("no scored prompts to compare")

// PromptSummary aggregates one prompt's result set. Means are taken over
// non-fallback results only.
type PromptSummary struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Articles     int               `json:"articles"`
	Fallbacks    int               `json:"fallbacks"`
	Positive     int               `json:"positive"`
	TokensUsed   int               `json:"tokens_used"`
	MeanUplift   float64           `json:"mean_uplift"`
	MeanEmotions analyzer.Emotions `json:"mean_emotions"`
}

// Metric is one bar group on the chart.
type Metric struct {
	Label string
	Color string
	Value func(PromptSummary) float64
}

// Metrics are drawn top to bottom in this order.
var Metrics = []Metric{
	{"Uplift", "#ffb400", func(s PromptSummary) float64 { return s.MeanUplift }},
	{"Hope", "#4a9eff", func(s PromptSummary) float64 { return s.MeanEmotions.Hope }},
	{"Awe", "#a66cff", func(s PromptSummary) float64 { return s.MeanEmotions.Awe }},
	{"Gratitude", "#2ed573", func(s PromptSummary) float64 { return s.MeanEmotions.Gratitude }},
	{"Compassion", "#ff6b81", func(s PromptSummary) float64 { return s.MeanEmotions.Compassion }},
	{"Relief", "#70a1ff", func(s PromptSummary) float64 { return s.MeanEmotions.Relief }},
	{"Joy", "#ffa502", func(s PromptSummary) float64 { return s.MeanEmotions.Joy }},
}

// Compare summarizes every prompt of an analysis, in prompt order.
func Compare(a *analyzer.Analysis) ([]PromptSummary, error) {
	if a == nil || len(a.ResultsByPrompt) == 0 {
		return nil, ErrNoData
	}

	ids := make([]string, 0, len(a.ResultsByPrompt))
	names := make(map[string]string, len(a.Prompts))
	for _, p := range a.Prompts {
		if _, ok := a.ResultsByPrompt[p.ID]; ok {
			ids = append(ids, p.ID)
			names[p.ID] = p.Name
		}
	}
	if len(ids) == 0 {
		for id := range a.ResultsByPrompt {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	out := make([]PromptSummary, 0, len(ids))
	for _, id := range ids {
		s := summarize(a.ResultsByPrompt[id])
		s.ID = id
		if s.Name = names[id]; s.Name == "" {
			s.Name = id
		}
		out = append(out, s)
	}
	return out, nil
}

func summarize(pr *analyzer.PromptResults) PromptSummary {
	s := PromptSummary{Articles: len(pr.Results), TokensUsed: pr.TokensUsed}
	var scored int
	for _, r := range pr.Results {
		if r.Fallback {
			s.Fallbacks++
			continue
		}
		scored++
		if r.Sentiment == "positive" {
			s.Positive++
		}
		s.MeanUplift += r.OverallHopefulness
		s.MeanEmotions.Hope += r.Emotions.Hope
		s.MeanEmotions.Awe += r.Emotions.Awe
		s.MeanEmotions.Gratitude += r.Emotions.Gratitude
		s.MeanEmotions.Compassion += r.Emotions.Compassion
		s.MeanEmotions.Relief += r.Emotions.Relief
		s.MeanEmotions.Joy += r.Emotions.Joy
	}
	if scored == 0 {
		return s
	}
	n := float64(scored)
	s.MeanUplift /= n
	s.MeanEmotions.Hope /= n
	s.MeanEmotions.Awe /= n
	s.MeanEmotions.Gratitude /= n
	s.MeanEmotions.Compassion /= n
	s.MeanEmotions.Relief /= n
	s.MeanEmotions.Joy /= n
	return s
}
