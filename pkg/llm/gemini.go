package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrBlocked is returned when Gemini refuses the prompt or withholds the
// answer for safety reasons.
var ErrBlocked = errors.New("response blocked by provider")

// News batches routinely mention violence and disasters; the default
// thresholds would withhold whole batches.
var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// geminiClient talks to the generateContent REST endpoint.
type geminiClient struct {
	cfg      Config
	http     *http.Client
	endpoint string
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = geminiBaseURL
	}
	client := &geminiClient{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, cfg.Model, url.QueryEscape(cfg.APIKey)),
	}
	return wrapWithRetry(client, cfg.MaxRetries), nil
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	SafetySettings    []geminiSafety   `json:"safetySettings,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	Temperature      float64         `json:"temperature,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ThinkingConfig   *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata geminiUsage `json:"usageMetadata"`
	Error         *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// buildRequest maps a Request onto the Gemini schema. Request-level limits
// win over the client defaults.
func (c *geminiClient) buildRequest(req *Request) geminiRequest {
	g := geminiRequest{
		// Thinking tokens count against maxOutputTokens on 2.5 models; a
		// 100-article batch needs the whole budget for the answer.
		GenerationConfig: &geminiGenConfig{ThinkingConfig: &thinkingConfig{}},
	}
	if req.System != "" {
		g.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		g.Contents = append(g.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	for _, cat := range geminiSafetyCategories {
		g.SafetySettings = append(g.SafetySettings, geminiSafety{Category: cat, Threshold: "BLOCK_ONLY_HIGH"})
	}

	gc := g.GenerationConfig
	gc.MaxOutputTokens = firstPositive(req.MaxTokens, c.cfg.MaxTokens)
	gc.Temperature = req.Temperature
	if gc.Temperature <= 0 {
		gc.Temperature = c.cfg.Temperature
	}
	if req.JSONMode {
		gc.ResponseMimeType = "application/json"
	}
	return g
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var gResp geminiResponse
	decodeErr := json.Unmarshal(raw, &gResp)
	if httpResp.StatusCode >= 300 || gResp.Error != nil {
		apiErr := &APIError{
			Provider:   Gemini,
			StatusCode: httpResp.StatusCode,
			Message:    string(raw),
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
		}
		if gResp.Error != nil {
			apiErr.Message = gResp.Error.Message
			if gResp.Error.Code != 0 {
				apiErr.StatusCode = gResp.Error.Code
			}
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("unmarshal response: %w", decodeErr)
	}

	if fb := gResp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt %s", ErrBlocked, strings.ToLower(fb.BlockReason))
	}
	if len(gResp.Candidates) == 0 {
		return nil, errors.New("no candidates in Gemini response")
	}
	cand := gResp.Candidates[0]
	if len(cand.Content.Parts) == 0 {
		if cand.FinishReason == "SAFETY" {
			return nil, fmt.Errorf("%w: answer withheld", ErrBlocked)
		}
		return nil, fmt.Errorf("empty Gemini answer (finish reason %s)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}

	usage := gResp.UsageMetadata
	return &Response{
		Content:      sb.String(),
		FinishReason: cand.FinishReason,
		TokensIn:     usage.PromptTokenCount,
		TokensOut:    usage.CandidatesTokenCount,
		TokensTotal:  usage.TotalTokenCount,
		Cost:         EstimateCost(c.cfg.Model, usage.PromptTokenCount, usage.CandidatesTokenCount),
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *geminiClient) GenerateJSON(ctx context.Context, req *Request, out any) error {
	req.JSONMode = true
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(resp.Content), out)
}

func (c *geminiClient) Provider() Provider { return Gemini }
func (c *geminiClient) Close() error       { return nil }

// parseRetryAfter reads a delay-seconds Retry-After header.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
