// Package provider talks to the generative model that analyzes media.
//
// The only backend is Google's Gemini generateContent REST API. Calls are
// bounded by a Gate supplied by the caller, retried on rate limiting, and
// fall back through a list of candidate models when a model is unknown.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPrompt is sent when the caller gives no instructions.
const DefaultPrompt = "Analyze the attached media and extract structured data you can infer. " +
	"Return strict JSON with keys: media_type, extracted_items (array of {name, value, confidence}), " +
	"summary, warnings. Keep values concise."

const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com"
	DefaultModel           = "gemini-1.5-flash"
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 800
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 30 * time.Second
)

// DefaultFallbacks are tried in order after the configured model.
var DefaultFallbacks = []string{"gemini-2.0-flash-lite", "gemini-2.0-flash"}

// Gate bounds concurrent calls to the API. Acquire blocks until a slot is
// free or ctx is done.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

// Request is one media analysis call.
type Request struct {
	Data         []byte
	MimeType     string
	Instructions string
}

// Response is the model's text answer and the model that produced it.
type Response struct {
	Text  string
	Model string
}

// Options configures a Gemini client. Zero values fall back to defaults.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Fallbacks       []string
	Temperature     float64
	MaxOutputTokens int
	MaxAttempts     int
	RetryDelay      time.Duration
	HTTPClient      *http.Client
	Gate            Gate
}

// Gemini is a client for the generateContent endpoint.
type Gemini struct {
	apiKey      string
	baseURL     string
	models      []string
	temperature float64
	maxTokens   int
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	gate        Gate
}

// NewGemini creates a client from opts.
func NewGemini(opts Options) *Gemini {
	g := &Gemini{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxOutputTokens,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		httpClient:  opts.HTTPClient,
		gate:        opts.Gate,
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.temperature == 0 {
		g.temperature = DefaultTemperature
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxOutputTokens
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.retryDelay <= 0 {
		g.retryDelay = DefaultRetryDelay
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 2 * time.Minute}
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	fallbacks := opts.Fallbacks
	if fallbacks == nil {
		fallbacks = DefaultFallbacks
	}
	g.models = candidateModels(model, fallbacks)
	return g
}

// candidateModels returns model followed by fallbacks, without repeats.
func candidateModels(model string, fallbacks []string) []string {
	out := []string{model}
	for _, m := range fallbacks {
		dup := false
		for _, seen := range out {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup && m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Models returns the candidate models in the order they are tried.
func (g *Gemini) Models() []string {
	return append([]string(nil), g.models...)
}

// Analyze sends the media and prompt to the first candidate model that
// exists. A 404 moves on to the next candidate; any other failure is
// returned as is.
func (g *Gemini) Analyze(ctx context.Context, req Request) (*Response, error) {
	if g.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	prompt := strings.TrimSpace(req.Instructions)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(req.Data),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      g.temperature,
			MaxOutputTokens:  g.maxTokens,
			ResponseMimeType: "application/json",
		},
	}

	var lastErr error
	for _, model := range g.models {
		text, err := g.generateWithRetry(ctx, model, body)
		if err == nil {
			return &Response{Text: text, Model: model}, nil
		}
		lastErr = err

		pe, ok := AsProviderError(err)
		if !ok || !pe.IsNotFound() {
			break
		}
		slog.Warn("model unavailable, trying next candidate", "model", model, "status", pe.StatusCode)
	}
	return nil, lastErr
}

// generateWithRetry retries rate-limited calls after retryDelay. The gate
// slot is held only while a request is in flight.
func (g *Gemini) generateWithRetry(ctx context.Context, model string, body generateRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		text, err := g.generate(ctx, model, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		pe, ok := AsProviderError(err)
		if !ok || !pe.IsRateLimited() || attempt == g.maxAttempts {
			break
		}

		slog.Warn("rate limited by provider, backing off",
			"model", model,
			"attempt", attempt,
			"delay", g.retryDelay,
		)
		timer := time.NewTimer(g.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}

func (g *Gemini) generate(ctx context.Context, model string, body generateRequest) (string, error) {
	if g.gate != nil {
		if err := g.gate.Acquire(ctx); err != nil {
			return "", err
		}
		defer g.gate.Release()
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("provider: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("provider: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readProviderError(resp)
	}

	var wire generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("provider: decoding response: %w", err)
	}
	return wire.text()
}

// Model describes one entry of the models listing.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	Description                string   `json:"description,omitempty"`
	InputTokenLimit            int      `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit           int      `json:"outputTokenLimit,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ListModels returns the models visible to the API key.
func (g *Gemini) ListModels(ctx context.Context) ([]Model, error) {
	if g.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	var (
		models    []Model
		pageToken string
	)
	for {
		q := url.Values{"pageSize": {"1000"}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/models?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("provider: creating request: %w", err)
		}
		httpReq.Header.Set("x-goog-api-key", g.apiKey)

		page, err := g.listPage(httpReq)
		if err != nil {
			return nil, err
		}
		models = append(models, page.Models...)
		if page.NextPageToken == "" {
			return models, nil
		}
		pageToken = page.NextPageToken
	}
}

func (g *Gemini) listPage(req *http.Request) (*listModelsResponse, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp)
	}
	var page listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("provider: decoding models: %w", err)
	}
	return &page, nil
}
