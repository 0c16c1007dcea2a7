package analyzer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
)

// Prompt is one competing instruction set sent to the scoring model.
type Prompt struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"-"`
	Active   bool   `yaml:"active" json:"active"`
}

// countPlaceholder is replaced with the batch size when a prompt is built.
const countPlaceholder = "{article_count}"

const comprehensiveTemplate = `Analyze these {article_count} news articles for comprehensive emotional and contextual analysis. Produce exactly {article_count} objects, one per article, in article order.

REQUIRED FORMAT for each article:
{
  "article_index": 0,
  "sentiment": "positive/negative/neutral",
  "confidence_score": 0.85,
  "emotions": {"hope": 0.8, "awe": 0.6, "gratitude": 0.4, "compassion": 0.7, "relief": 0.3, "joy": 0.5},
  "categories": ["medical", "technology"],
  "source_credibility": "high",
  "fact_checkable_claims": "yes",
  "evidence_quality": "strong",
  "controversy_level": "low",
  "solution_focused": "yes",
  "age_appropriate": "all",
  "truth_seeking": "no",
  "geographic_scope": ["World"],
  "country_focus": "None",
  "local_focus": "None",
  "geographic_relevance": "primary",
  "geographical_impact_level": "Local/National/Regional/Global",
  "geographical_impact_location": ["Kenya"],
  "overall_hopefulness": 0.75,
  "reasoning": "Brief 5-word summary"
}

EMOTION FOCUS: hope, awe, gratitude, compassion, relief, joy (0.0-1.0)
CATEGORIES: Suggest 1-3 organically (medical, tech, environment, social, etc.)
LOCATION: name the countries or regions affected, or "World"
REASONING: Maximum 5 words to minimize tokens`

const solutionsTemplate = `You are an editor for a constructive-news service. For each of the {article_count} articles below, judge whether it reports a concrete solution, progress or act of kindness, and how much hope it leaves a reader with. Produce exactly {article_count} objects, one per article, in article order, using this format:
{
  "article_index": 0,
  "sentiment": "positive/negative/neutral",
  "confidence_score": 0.0-1.0,
  "emotions": {"hope": 0.0, "awe": 0.0, "gratitude": 0.0, "compassion": 0.0, "relief": 0.0, "joy": 0.0},
  "categories": ["1-3 topic labels"],
  "source_credibility": "high/medium/low",
  "fact_checkable_claims": "yes/no",
  "evidence_quality": "strong/moderate/weak",
  "controversy_level": "low/medium/high",
  "solution_focused": "yes/no",
  "age_appropriate": "all/teen/adult",
  "truth_seeking": "yes/no",
  "geographical_impact_level": "Local/National/Regional/Global",
  "geographical_impact_location": ["country or region names"],
  "overall_hopefulness": 0.0-1.0,
  "reasoning": "at most 5 words"
}
Score hopefulness low for stories that only describe a problem, even if the tone is upbeat.`

// DefaultPrompts returns the built-in prompt set. Only the comprehensive
// prompt is active by default.
func DefaultPrompts() []Prompt {
	return []Prompt{
		{ID: "v1-comprehensive", Name: "Comprehensive emotional analysis", Template: comprehensiveTemplate, Active: true},
		{ID: "v2-solutions", Name: "Solutions journalism focus", Template: solutionsTemplate, Active: false},
	}
}

type promptFile struct {
	Prompts []Prompt `yaml:"prompts"`
}

// LoadPrompts reads a YAML file with a top-level "prompts" list.
func LoadPrompts(path string) ([]Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	if err := validatePrompts(f.Prompts); err != nil {
		return nil, fmt.Errorf("prompts %s: %w", path, err)
	}
	return f.Prompts, nil
}

func validatePrompts(prompts []Prompt) error {
	seen := make(map[string]bool, len(prompts))
	for i, p := range prompts {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("prompt %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate prompt id %q", p.ID)
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Template) == "" {
			return fmt.Errorf("prompt %q has an empty template", p.ID)
		}
	}
	return nil
}

// ActivePrompts filters the prompts marked active, preserving order.
func ActivePrompts(prompts []Prompt) []Prompt {
	var out []Prompt
	for _, p := range prompts {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

func (p Prompt) render(n int) string {
	return strings.ReplaceAll(p.Template, countPlaceholder, strconv.Itoa(n))
}

func writeArticles(sb *strings.Builder, batch []sources.Article) {
	sb.WriteString("\nArticles to analyze:\n")
	for i, a := range batch {
		fmt.Fprintf(sb, "\nArticle %d:\nTitle: %s\nDescription: %s\n",
			i, truncateRunes(a.Title, 200), truncateRunes(a.Description, 300))
	}
}

// buildSinglePrompt asks for a bare JSON array.
func buildSinglePrompt(p Prompt, batch []sources.Article) string {
	n := len(batch)
	var sb strings.Builder
	sb.WriteString(p.render(n))
	sb.WriteString("\n\nReturn a JSON array only.\n")
	writeArticles(&sb, batch)
	fmt.Fprintf(&sb, "\nReturn JSON array with exactly %d analysis objects. Keep responses concise.", n)
	return sb.String()
}

// buildCombinedPrompt asks for one JSON object keyed by prompt id, each
// value an array of len(batch) analyses.
func buildCombinedPrompt(prompts []Prompt, batch []sources.Article) string {
	if len(prompts) == 1 {
		return buildSinglePrompt(prompts[0], batch)
	}

	n := len(batch)
	ids := make([]string, len(prompts))
	for i, p := range prompts {
		ids[i] = strconv.Quote(p.ID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You will analyze the same %d news articles under %d independent instruction sets.\n", n, len(prompts))
	fmt.Fprintf(&sb, "Return ONE JSON object whose keys are exactly %s. Each value must be a JSON array of exactly %d analysis objects produced by following that instruction set alone.\n",
		strings.Join(ids, ", "), n)
	for _, p := range prompts {
		fmt.Fprintf(&sb, "\n### Instruction set %q (%s)\n%s\n", p.ID, p.Name, p.render(n))
	}
	writeArticles(&sb, batch)
	fmt.Fprintf(&sb, "\nReturn only the JSON object with %d keys. Keep responses concise.", len(prompts))
	return sb.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
