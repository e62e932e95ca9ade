// Package provider defines the contract shared by text-to-image backends.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single provider call when none is configured.
const DefaultTimeout = 120 * time.Second

// MaxErrorBody caps how much of a failed response body is kept.
const MaxErrorBody = 2048

// Request is a rendered prompt plus output dimensions.
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
}

// Image is a generated image reference. URL is either a hosted URL or a
// data URI holding the image bytes.
type Image struct {
	URL         string
	ContentType string
}

// Provider generates one image per call. Implementations make exactly one
// HTTP request and never retry.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Image, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// CheckResponse returns a *StatusError for non-2xx responses. The body is
// drained up to MaxErrorBody bytes.
func CheckResponse(name string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBody))
	return &StatusError{Provider: name, StatusCode: resp.StatusCode, Body: string(body)}
}

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
