package router

import (
	"errors"
	"testing"

	"github.com/plumbus-labs/plumbus/pkg/config"
	"github.com/plumbus-labs/plumbus/pkg/models"
)

func names(routes []Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Provider.Name()
	}
	return out
}

func twoProviders() *config.Config {
	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{
		{Name: "hf", Type: config.ProviderHuggingFace, APIKey: "hf-1"},
		{Name: "tg", Type: config.ProviderTogether, APIKey: "tg-1"},
	}
	return cfg
}

func TestResolveNoRoutes(t *testing.T) {
	r := New(twoProviders())
	routes, err := r.Resolve(models.StyleRealistic)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(routes); len(got) != 2 || got[0] != "hf" || got[1] != "tg" {
		t.Fatalf("unexpected chain: %v", got)
	}
	if !routes[0].Metered {
		t.Error("huggingface should be metered by default")
	}
	if routes[1].Metered {
		t.Error("together should not be metered by default")
	}
}

func TestResolveSkipsKeyless(t *testing.T) {
	cfg := twoProviders()
	cfg.Providers[1].APIKey = ""
	r := New(cfg)

	routes, err := r.Resolve(models.StyleCartoon)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(routes); len(got) != 1 || got[0] != "hf" {
		t.Fatalf("unexpected chain: %v", got)
	}
}

func TestResolveWithOverride(t *testing.T) {
	cfg := twoProviders()
	cfg.Router.Routes = []config.RouteConfig{
		{Style: "cartoon", Providers: []string{"tg", "hf"}},
	}
	r := New(cfg)

	routes, err := r.Resolve(models.StyleCartoon)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(routes); got[0] != "tg" || got[1] != "hf" {
		t.Errorf("unexpected override chain: %v", got)
	}

	routes, err = r.Resolve(models.StyleSimple)
	if err != nil {
		t.Fatal(err)
	}
	if names(routes)[0] != "hf" {
		t.Errorf("non-overridden style should use default order")
	}
}

func TestResolveSkipsUnknownProvider(t *testing.T) {
	cfg := twoProviders()
	cfg.Router.Routes = []config.RouteConfig{
		{Style: "technical", Providers: []string{"unknown", "tg"}},
	}
	routes, err := New(cfg).Resolve(models.StyleTechnical)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(routes); len(got) != 1 || got[0] != "tg" {
		t.Errorf("unexpected chain: %v", got)
	}
}

func TestResolveAllUnknownProviders(t *testing.T) {
	cfg := twoProviders()
	cfg.Router.Routes = []config.RouteConfig{
		{Style: "artistic", Providers: []string{"unknown"}},
	}
	_, err := New(cfg).Resolve(models.StyleArtistic)
	if err == nil {
		t.Fatal("expected error for all unknown providers")
	}
	if errors.Is(err, ErrNoProviders) {
		t.Error("unknown targets should not report ErrNoProviders")
	}
}

func TestResolveRouteTargetsKeyless(t *testing.T) {
	cfg := twoProviders()
	cfg.Providers[1].APIKey = ""
	cfg.Router.Routes = []config.RouteConfig{
		{Style: "artistic", Providers: []string{"tg"}},
	}
	_, err := New(cfg).Resolve(models.StyleArtistic)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestResolveNoProviders(t *testing.T) {
	r := New(config.Default()) // default providers have no keys
	if r.Available() {
		t.Error("router without keys should not be available")
	}
	_, err := r.Resolve(models.StyleRealistic)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestNames(t *testing.T) {
	got := New(twoProviders()).Names()
	if len(got) != 2 || got[0] != "hf" || got[1] != "tg" {
		t.Errorf("unexpected names: %v", got)
	}
}
