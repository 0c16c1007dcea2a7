package llm

import "strings"

// modelPrice is USD per 1M tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

// pricing is matched by longest prefix, so dated or preview variants such
// as "gemini-2.5-flash-lite-preview-09-2025" share their family's price.
var pricing = map[string]modelPrice{
	"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
	"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30},
	"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
	"gpt-4o-mini":           {Input: 0.15, Output: 0.60},
	"gpt-4o":                {Input: 2.50, Output: 10.00},
	"claude-haiku-4-5":      {Input: 1.00, Output: 5.00},
	"claude-sonnet-4-5":     {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku":      {Input: 0.80, Output: 4.00},
}

func priceFor(model string) (modelPrice, bool) {
	var (
		best    modelPrice
		bestLen int
	)
	for prefix, p := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
		}
	}
	return best, bestLen > 0
}

// EstimateCost returns the USD cost of a call, or 0 for unknown models.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := priceFor(model)
	if !ok {
		return 0
	}
	return (float64(tokensIn)*p.Input + float64(tokensOut)*p.Output) / 1_000_000
}
