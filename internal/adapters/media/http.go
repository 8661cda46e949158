package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default HTTP generator configuration constants.
const (
	defaultModel   = "black-forest-labs/flux-schnell"
	defaultTimeout = 60 * time.Second
)

// HTTPGenerator implements Generator against an image generation endpoint
// that accepts a prompt and returns an asset URL.
type HTTPGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option applies a configuration option to the HTTPGenerator.
type Option func(*HTTPGenerator)

// WithModel sets the image model identifier.
func WithModel(m string) Option {
	return func(g *HTTPGenerator) {
		if m != "" {
			g.model = m
		}
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGenerator) {
		if d > 0 {
			g.httpClient.Timeout = d
		}
	}
}

// NewHTTPGenerator creates an image generation client.
func NewHTTPGenerator(baseURL, apiKey string, opts ...Option) *HTTPGenerator {
	g := &HTTPGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	URL string `json:"url"`
}

// GenerateAsset renders one asset and returns its URL.
func (g *HTTPGenerator) GenerateAsset(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrGenerate, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrGenerate, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrGenerate, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGenerate, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %w", ErrGenerate, err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("%w: empty asset url", ErrGenerate)
	}
	return parsed.URL, nil
}
