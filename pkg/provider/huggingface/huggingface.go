// Package huggingface calls the Hugging Face inference API, which answers
// with raw image bytes.
package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plumbus-labs/plumbus/pkg/provider"
)

const (
	DefaultBaseURL   = "https://api-inference.huggingface.co"
	DefaultModel     = "stabilityai/stable-diffusion-xl-base-1.0"
	DefaultGuidance  = 7.5
	DefaultSteps     = 30
	DefaultScheduler = "DPMSolverMultistepScheduler"
)

// maxImageBytes bounds an image response; larger responses are rejected.
var maxImageBytes int64 = 20 << 20

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
		cfg.Name = "huggingface"
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

type parameters struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Scheduler         string  `json:"scheduler"`
	NegativePrompt    string  `json:"negative_prompt"`
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

// Generate posts the prompt and returns the image as a data URI.
func (p *Provider) Generate(ctx context.Context, req provider.Request) (provider.Image, error) {
	body, err := json.Marshal(request{
		Inputs: req.Prompt,
		Parameters: parameters{
			Width:             req.Width,
			Height:            req.Height,
			GuidanceScale:     DefaultGuidance,
			NumInferenceSteps: DefaultSteps,
			Scheduler:         DefaultScheduler,
			NegativePrompt:    req.NegativePrompt,
		},
	})
	if err != nil {
		return provider.Image{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/models/" + p.cfg.Model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Image{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return provider.Image{}, fmt.Errorf("%s request failed: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if err := provider.CheckResponse(p.cfg.Name, resp); err != nil {
		return provider.Image{}, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return provider.Image{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxImageBytes {
		return provider.Image{}, fmt.Errorf("image response exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return provider.Image{}, errors.New("empty image response")
	}

	contentType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(contentType)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return provider.Image{}, fmt.Errorf("unexpected content type %q", contentType)
	}

	return provider.Image{
		URL:         "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
	}, nil
}
