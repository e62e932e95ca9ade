// Package together calls the Together AI image generation API, which
// answers with hosted image URLs.
package together

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/plumbus-labs/plumbus/pkg/provider"
)

const (
	DefaultBaseURL = "https://api.together.xyz"
	DefaultModel   = "black-forest-labs/FLUX.1-schnell"
	DefaultSteps   = 4
)

// Config configures a Provider.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider implements provider.Provider.
type Provider struct {
	cfg Config
	hc  *http.Client
}

// New creates a Provider, filling unset fields with defaults.
func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "together"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{cfg: cfg, hc: provider.NewHTTPClient(cfg.Timeout)}
}

func (p *Provider) Name() string { return p.cfg.Name }

type request struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Steps          int    `json:"steps"`
	N              int    `json:"n"`
}

type response struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate posts the prompt and returns the first hosted image URL.
func (p *Provider) Generate(ctx context.Context, req provider.Request) (provider.Image, error) {
	body, err := json.Marshal(request{
		Model:          p.cfg.Model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          DefaultSteps,
		N:              1,
	})
	if err != nil {
		return provider.Image{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Image{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return provider.Image{}, fmt.Errorf("%s request failed: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if err := provider.CheckResponse(p.cfg.Name, resp); err != nil {
		return provider.Image{}, err
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider.Image{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return provider.Image{}, errors.New("no image returned")
	}

	return provider.Image{URL: out.Data[0].URL}, nil
}
