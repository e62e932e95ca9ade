package mcp

import (
	"fmt"
	"strings"

	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
)

// formatResult describes a generation result. Data URIs are elided; the
// image itself is attached as a separate block.
func formatResult(res models.GenerationResult) string {
	url := res.ImageURL
	if strings.HasPrefix(url, "data:") {
		meta, _, _ := strings.Cut(url, ",")
		url = fmt.Sprintf("%s,... (%d bytes)", meta, len(res.ImageURL))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Provider:  %s\n", res.ServiceName)
	fmt.Fprintf(&b, "Cached:    %t\n", res.Cached)
	fmt.Fprintf(&b, "Generated: %s\n", res.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Image:     %s\n", url)
	fmt.Fprintf(&b, "Prompt:    %s\n", res.Prompt)
	return b.String()
}

// formatPresets lists presets with their options and prompts.
func formatPresets(names []string) string {
	if len(names) == 0 {
		return "No presets defined."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-10s %-9s %-10s %s\n", "Preset", "Style", "Size", "Variant", "Components")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, name := range names {
		req, _ := prompt.Preset(name)
		comps := make([]string, len(req.Components))
		for i, c := range req.Components {
			comps[i] = string(c)
		}
		fmt.Fprintf(&b, "%-14s %-10s %-9s %-10s %s\n",
			name, req.Style, req.Size, req.Variant, strings.Join(comps, ", "))
	}
	return b.String()
}

// formatUsage formats usage counters as text.
func formatUsage(u models.UsageStats) string {
	return fmt.Sprintf("Usage\n"+
		"  Requests:         %d\n"+
		"  Generations:      %d\n"+
		"  Cache Hits:       %d\n"+
		"  Quota Used:       %d chars\n"+
		"  Quota Remaining:  %d chars\n",
		u.TotalRequests, u.SuccessfulGenerations, u.CacheHits,
		u.CurrentMonthUsage, u.RemainingQuota)
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:   %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Evictions, hitRate)
}

// formatHistory formats history entries as a text table.
func formatHistory(entries []models.HistoryEntry) string {
	if len(entries) == 0 {
		return "No history entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-38s %-10s %-14s %-14s %8s\n",
		"Time", "Request ID", "Style", "Provider", "Outcome", "Latency")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %-38s %-10s %-14s %-14s %6dms\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.RequestID, e.Style, e.Provider, e.Outcome, e.LatencyMs)
		if e.Error != "" {
			fmt.Fprintf(&b, "    error: %s\n", e.Error)
		}
	}
	return b.String()
}
