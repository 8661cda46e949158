package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// Default publisher configuration constants.
const (
	defaultAPIVersion = "2026-01"
	defaultTimeout    = 30 * time.Second
)

// HTTPPublisher implements Publisher against a Shopify-style admin REST API.
type HTTPPublisher struct {
	storeDomain string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
}

// Option applies a configuration option to the HTTPPublisher.
type Option func(*HTTPPublisher)

// WithAPIVersion overrides the admin API version.
func WithAPIVersion(v string) Option {
	return func(p *HTTPPublisher) {
		if v != "" {
			p.apiVersion = v
		}
	}
}

// WithTimeout bounds each publish call.
func WithTimeout(d time.Duration) Option {
	return func(p *HTTPPublisher) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// NewHTTPPublisher creates a storefront publisher client.
func NewHTTPPublisher(storeDomain, accessToken string, opts ...Option) *HTTPPublisher {
	p := &HTTPPublisher{
		storeDomain: storeDomain,
		accessToken: accessToken,
		apiVersion:  defaultAPIVersion,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type productPayload struct {
	Product struct {
		Title       string `json:"title"`
		BodyHTML    string `json:"body_html"`
		Tags        string `json:"tags"`
		Status      string `json:"status"`
		Variants    []struct {
			Price string `json:"price"`
		} `json:"variants"`
	} `json:"product"`
}

type productResponse struct {
	Product struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"product"`
}

// Publish submits one draft as a draft-status product.
func (p *HTTPPublisher) Publish(ctx context.Context, draft model.ProductDraft) (model.Listing, error) {
	var payload productPayload
	payload.Product.Title = draft.Title
	payload.Product.BodyHTML = draft.Description
	payload.Product.Tags = strings.Join(draft.Tags, ", ")
	payload.Product.Status = "draft"
	payload.Product.Variants = []struct {
		Price string `json:"price"`
	}{{Price: fmt.Sprintf("%.2f", draft.Price)}}

	body, err := json.Marshal(payload)
	if err != nil {
		return model.Listing{}, fmt.Errorf("%w: marshal product: %w", ErrPublish, err)
	}

	url := fmt.Sprintf("https://%s/admin/api/%s/products.json", p.storeDomain, p.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return model.Listing{}, fmt.Errorf("%w: build request: %w", ErrPublish, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", p.accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.Listing{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Listing{}, fmt.Errorf("%w: read response: %w", ErrPublish, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return model.Listing{}, fmt.Errorf("%w: status %d", ErrPublish, resp.StatusCode)
	}

	var parsed productResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return model.Listing{}, fmt.Errorf("%w: unmarshal response: %w", ErrPublish, err)
	}
	return model.Listing{
		ID:     fmt.Sprintf("%d", parsed.Product.ID),
		Status: parsed.Product.Status,
	}, nil
}

// DryRunPublisher implements Publisher without a storefront. Every draft is
// acknowledged with a synthetic listing; used in demo mode.
type DryRunPublisher struct{}

// NewDryRunPublisher creates the no-op publisher.
func NewDryRunPublisher() *DryRunPublisher {
	return &DryRunPublisher{}
}

// Publish acknowledges the draft without side effects.
func (p *DryRunPublisher) Publish(_ context.Context, draft model.ProductDraft) (model.Listing, error) {
	return model.Listing{ID: "dryrun-" + draft.IdeaID, Status: "draft"}, nil
}
