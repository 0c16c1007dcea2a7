package analyzer

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Emotions are the six scored target emotions, each in [0,1].
type Emotions struct {
	Hope       float64 `json:"hope"`
	Awe        float64 `json:"awe"`
	Gratitude  float64 `json:"gratitude"`
	Compassion float64 `json:"compassion"`
	Relief     float64 `json:"relief"`
	Joy        float64 `json:"joy"`
}

// Result is the analysis of one article under one prompt.
type Result struct {
	ArticleIndex        int      `json:"article_index"`
	Sentiment           string   `json:"sentiment"`
	ConfidenceScore     float64  `json:"confidence_score"`
	Emotions            Emotions `json:"emotions"`
	Categories          []string `json:"categories"`
	SourceCredibility   string   `json:"source_credibility"`
	FactCheckableClaims string   `json:"fact_checkable_claims"`
	EvidenceQuality     string   `json:"evidence_quality"`
	ControversyLevel    string   `json:"controversy_level"`
	SolutionFocused     string   `json:"solution_focused"`
	AgeAppropriate      string   `json:"age_appropriate"`
	TruthSeeking        string   `json:"truth_seeking"`
	GeographicScope     []string `json:"geographic_scope"`
	CountryFocus        string   `json:"country_focus"`
	LocalFocus          string   `json:"local_focus"`
	GeographicRelevance string   `json:"geographic_relevance"`
	OverallHopefulness  float64  `json:"overall_hopefulness"`
	Reasoning           string   `json:"reasoning"`

	// Set by geographic post-processing.
	ImpactLevel   string   `json:"geographical_impact_level"`
	ImpactPlaces  []string `json:"geographical_impact_location,omitempty"`
	LocationCodes []int    `json:"geographical_impact_m49_codes"`
	LocationNames []string `json:"geographical_impact_location_names"`

	AnalyzerType string `json:"analyzer_type"`
	Fallback     bool   `json:"fallback,omitempty"`
	Unscored     bool   `json:"unscored,omitempty"`
}

// FallbackReasoning marks a synthesized result.
const FallbackReasoning = "Parsing failed"

// Fallback builds the neutral record used whenever the model output for an
// article cannot be parsed.
func Fallback(index int) Result {
	return Result{
		ArticleIndex:        index,
		Sentiment:           "neutral",
		ConfidenceScore:     0.5,
		Categories:          []string{"unknown"},
		SourceCredibility:   "medium",
		FactCheckableClaims: "unknown",
		EvidenceQuality:     "moderate",
		ControversyLevel:    "low",
		SolutionFocused:     "unknown",
		AgeAppropriate:      "all",
		TruthSeeking:        "no",
		GeographicScope:     []string{"Unknown"},
		CountryFocus:        "None",
		LocalFocus:          "None",
		GeographicRelevance: "minimal",
		OverallHopefulness:  0.0,
		Reasoning:           FallbackReasoning,
		Fallback:            true,
	}
}

// UnscoredReasoning marks a fallback for an article the model never saw.
const UnscoredReasoning = "Not analyzed: scoring stopped early"

// Unscored builds the fallback for an article left out of scoring by a quota
// denial or a failed request.
func Unscored(index int) Result {
	r := Fallback(index)
	r.Reasoning = UnscoredReasoning
	r.Unscored = true
	return r
}

// Fallbacks returns n fallback records indexed 0..n-1.
func Fallbacks(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Fallback(i)
	}
	return out
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	f.v, f.set = v, true
	return nil
}

// flexString accepts a string, number or boolean.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	switch v := strings.TrimSpace(string(b)); v {
	case "null":
		*f = ""
	case "true":
		*f = "yes"
	case "false":
		*f = "no"
	default:
		*f = flexString(v)
	}
	return nil
}

// flexStrings accepts an array of strings or one comma-separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var list []flexString
	if err := json.Unmarshal(b, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s != "" {
				out = append(out, string(s))
			}
		}
		*f = out
		return nil
	}
	var one flexString
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.Split(string(one), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*f = out
	return nil
}

// rawResult is one model-produced object before validation.
type rawResult struct {
	ArticleIndex        flexFloat            `json:"article_index"`
	Sentiment           flexString           `json:"sentiment"`
	ConfidenceScore     flexFloat            `json:"confidence_score"`
	Emotions            map[string]flexFloat `json:"emotions"`
	Categories          flexStrings          `json:"categories"`
	SourceCredibility   flexString           `json:"source_credibility"`
	FactCheckableClaims flexString           `json:"fact_checkable_claims"`
	EvidenceQuality     flexString           `json:"evidence_quality"`
	ControversyLevel    flexString           `json:"controversy_level"`
	SolutionFocused     flexString           `json:"solution_focused"`
	AgeAppropriate      flexString           `json:"age_appropriate"`
	TruthSeeking        flexString           `json:"truth_seeking"`
	GeographicScope     flexStrings          `json:"geographic_scope"`
	CountryFocus        flexString           `json:"country_focus"`
	LocalFocus          flexString           `json:"local_focus"`
	GeographicRelevance flexString           `json:"geographic_relevance"`
	ImpactLevel         flexString           `json:"geographical_impact_level"`
	ImpactLocation      flexStrings          `json:"geographical_impact_location"`
	OverallHopefulness  flexFloat            `json:"overall_hopefulness"`
	Reasoning           flexString           `json:"reasoning"`
}

func or(s flexString, def string) string {
	if s == "" {
		return def
	}
	return string(s)
}

// toResult validates r, filling any missing field from the neutral defaults.
func (r rawResult) toResult(index int) Result {
	def := Fallback(index)
	res := Result{
		ArticleIndex:        index,
		Sentiment:           normalizeSentiment(string(r.Sentiment)),
		ConfidenceScore:     def.ConfidenceScore,
		SourceCredibility:   strings.ToLower(or(r.SourceCredibility, def.SourceCredibility)),
		FactCheckableClaims: strings.ToLower(or(r.FactCheckableClaims, def.FactCheckableClaims)),
		EvidenceQuality:     strings.ToLower(or(r.EvidenceQuality, def.EvidenceQuality)),
		ControversyLevel:    strings.ToLower(or(r.ControversyLevel, def.ControversyLevel)),
		SolutionFocused:     strings.ToLower(or(r.SolutionFocused, def.SolutionFocused)),
		AgeAppropriate:      strings.ToLower(or(r.AgeAppropriate, def.AgeAppropriate)),
		TruthSeeking:        strings.ToLower(or(r.TruthSeeking, def.TruthSeeking)),
		GeographicScope:     []string(r.GeographicScope),
		CountryFocus:        or(r.CountryFocus, def.CountryFocus),
		LocalFocus:          or(r.LocalFocus, def.LocalFocus),
		GeographicRelevance: strings.ToLower(or(r.GeographicRelevance, def.GeographicRelevance)),
		ImpactLevel:         string(r.ImpactLevel),
		ImpactPlaces:        []string(r.ImpactLocation),
		Reasoning:           string(r.Reasoning),
	}
	if r.ConfidenceScore.set {
		res.ConfidenceScore = clamp01(r.ConfidenceScore.v)
	}
	res.Emotions = Emotions{
		Hope:       clamp01(r.Emotions["hope"].v),
		Awe:        clamp01(r.Emotions["awe"].v),
		Gratitude:  clamp01(r.Emotions["gratitude"].v),
		Compassion: clamp01(r.Emotions["compassion"].v),
		Relief:     clamp01(r.Emotions["relief"].v),
		Joy:        clamp01(r.Emotions["joy"].v),
	}
	res.Categories = normalizeCategories(r.Categories)
	if len(res.GeographicScope) == 0 {
		res.GeographicScope = def.GeographicScope
	}
	if r.OverallHopefulness.set {
		res.OverallHopefulness = clamp01(r.OverallHopefulness.v)
	} else {
		res.OverallHopefulness = UpliftScore(res.Emotions, res.Sentiment, res.ConfidenceScore)
	}
	return res
}

func normalizeSentiment(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "positive", "negative", "neutral":
		return s
	default:
		return "neutral"
	}
}

// normalizeCategories lower-cases, trims and de-duplicates labels.
func normalizeCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
