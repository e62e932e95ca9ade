package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
)

type generateArgs struct {
	Preset     string             `json:"preset"`
	Style      models.Style       `json:"style"`
	Components []models.Component `json:"components"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Variant    models.Variant     `json:"variant"`
}

type historyArgs struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	Since    string `json:"since"`
	Limit    int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"plumbus_generate":    handleGenerate,
	"plumbus_presets":     handlePresets,
	"plumbus_usage":       handleUsage,
	"plumbus_cache_stats": handleCacheStats,
	"plumbus_history":     handleHistory,
}

func enumSchema[T ~string](values []T, description string) map[string]any {
	return map[string]any{"type": "string", "enum": values, "description": description}
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "plumbus_generate",
		Description: "Generate a plumbus image from a preset or explicit options. Repeated requests are served from the cache.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"preset": map[string]any{
					"type":        "string",
					"description": "Preset name (optional, overrides the other options)",
				},
				"style": enumSchema(models.Styles, "Rendering style (default realistic)"),
				"components": map[string]any{
					"type":        "array",
					"items":       enumSchema(models.Components, "Plumbus component"),
					"description": "Components to show",
				},
				"width":   map[string]any{"type": "integer", "description": "Width in pixels (default 512)"},
				"height":  map[string]any{"type": "integer", "description": "Height in pixels (default 512)"},
				"variant": enumSchema(models.Variants, "Product variant (default standard)"),
			},
		},
	},
	{
		Name:        "plumbus_presets",
		Description: "List the named image presets and the prompts they render to.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "plumbus_usage",
		Description: "Show request, cache hit and generation counters plus the monthly quota.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "plumbus_cache_stats",
		Description: "Show result cache statistics (entries, hits, misses, evictions, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "plumbus_history",
		Description: "Search the generation history with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"provider": map[string]any{
					"type":        "string",
					"description": "Filter by provider name (optional)",
				},
				"outcome": map[string]any{
					"type":        "string",
					"enum":        []models.Outcome{models.OutcomeSuccess, models.OutcomeCacheHit, models.OutcomeFailed, models.OutcomeQuotaSkipped},
					"description": "Filter by outcome (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum entries (default 50)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{TextContent(text)}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{TextContent(text)}, IsError: true}
}

func handleGenerate(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args generateArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	req := models.GenerationRequest{
		Style:      args.Style,
		Components: args.Components,
		Size:       models.Size{Width: args.Width, Height: args.Height},
		Variant:    args.Variant,
	}
	if args.Preset != "" {
		p, ok := prompt.Preset(args.Preset)
		if !ok {
			return errorResult("Unknown preset: " + args.Preset)
		}
		req = p
	}

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		return errorResult("Generation failed: " + err.Error())
	}

	result := textResult(formatResult(res))
	if block, ok := imageBlock(res.ImageURL); ok {
		result.Content = append(result.Content, block)
	}
	return result
}

// imageBlock turns a base64 data URI into an image content block.
func imageBlock(url string) (ContentBlock, bool) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return ContentBlock{}, false
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return ContentBlock{}, false
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return ContentBlock{}, false
	}
	return ImageContent(data, mime), true
}

func handlePresets(_ context.Context, _ *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatPresets(prompt.PresetNames()))
}

func handleUsage(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatUsage(s.gen.Usage()))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	stats, err := s.gen.CacheStats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Generation history is not enabled.")
	}
	var args historyArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	opts := models.HistoryQueryOpts{
		Provider: args.Provider,
		Outcome:  models.Outcome(args.Outcome),
		Limit:    args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.history.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching history: " + err.Error())
	}
	return textResult(formatHistory(entries))
}
