package router

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/plumbus-labs/plumbus/pkg/config"
	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/provider"
	"github.com/plumbus-labs/plumbus/pkg/provider/huggingface"
	"github.com/plumbus-labs/plumbus/pkg/provider/together"
)

// ErrNoProviders is returned when no provider has an API key configured.
var ErrNoProviders = errors.New("no providers configured")

// Route is one provider in a fallback chain.
type Route struct {
	Provider provider.Provider
	Metered  bool
}

// Router resolves a style to an ordered provider chain.
type Router struct {
	chain     []Route
	known     map[string]bool
	overrides map[models.Style][]string
}

// New builds providers from the configuration. Providers without an API key
// are left out of every chain.
func New(cfg *config.Config) *Router {
	r := &Router{
		known:     make(map[string]bool, len(cfg.Providers)),
		overrides: make(map[models.Style][]string, len(cfg.Router.Routes)),
	}
	for _, pc := range cfg.Providers {
		r.known[pc.Name] = true
		if pc.APIKey == "" {
			continue
		}
		r.chain = append(r.chain, Route{Provider: build(pc), Metered: pc.IsMetered()})
	}
	for _, rc := range cfg.Router.Routes {
		r.overrides[models.Style(rc.Style)] = rc.Providers
	}
	return r
}

// NewStatic returns a Router that always resolves to routes.
func NewStatic(routes ...Route) *Router {
	r := &Router{known: make(map[string]bool, len(routes))}
	for _, rt := range routes {
		r.known[rt.Provider.Name()] = true
	}
	r.chain = routes
	return r
}

func build(pc config.ProviderConfig) provider.Provider {
	switch pc.Type {
	case config.ProviderTogether:
		return together.New(together.Config{
			Name: pc.Name, APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model, Timeout: pc.Timeout,
		})
	default:
		return huggingface.New(huggingface.Config{
			Name: pc.Name, APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model, Timeout: pc.Timeout,
		})
	}
}

// Available reports whether at least one provider can be called.
func (r *Router) Available() bool {
	return len(r.chain) > 0
}

// Names returns the usable provider names in default order.
func (r *Router) Names() []string {
	return lo.Map(r.chain, func(rt Route, _ int) string { return rt.Provider.Name() })
}

// Resolve returns the ordered chain for a style. Without an override the
// chain follows declaration order.
func (r *Router) Resolve(style models.Style) ([]Route, error) {
	if len(r.chain) == 0 {
		return nil, ErrNoProviders
	}

	targets, ok := r.overrides[style]
	if !ok {
		return r.chain, nil
	}

	index := lo.SliceToMap(r.chain, func(rt Route) (string, Route) { return rt.Provider.Name(), rt })
	var routes []Route
	anyKnown := false
	for _, name := range lo.Uniq(targets) {
		if r.known[name] {
			anyKnown = true
		}
		rt, ok := index[name]
		if !ok {
			continue // unknown or keyless
		}
		routes = append(routes, rt)
	}
	if len(routes) == 0 {
		if anyKnown {
			return nil, fmt.Errorf("route %q: %w", style, ErrNoProviders)
		}
		return nil, fmt.Errorf("route %q: all providers unknown", style)
	}
	return routes, nil
}
