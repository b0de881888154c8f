package transcript

import "strings"

// contextWindows maps model name fragments to context window sizes in
// tokens. Matching is case-insensitive substring, longest fragment wins,
// so "claude-sonnet-4" resolves via "claude-sonnet" rather than "claude".
// Updated as of mid 2025.
var contextWindows = map[string]int{
	// Claude models
	"claude-opus":   200000,
	"claude-sonnet": 200000,
	"claude-haiku":  200000,
	"claude-3":      200000,
	"claude-2":      100000,
	"claude":        200000,

	// OpenAI models
	"gpt-4o":      128000,
	"gpt-4-turbo": 128000,
	"gpt-4.1":     1000000,
	"gpt-4":       8192,
	"gpt-3.5":     16385,
	"o1":          200000,
	"o3":          200000,

	// Google models
	"gemini-1.5-pro":   2000000,
	"gemini-1.5-flash": 1000000,
	"gemini-2":         1000000,
	"gemini":           1000000,
}

// smallestWindow is the conservative default for unknown models: never
// overestimate how much room is left.
var smallestWindow = func() int {
	min := 0
	for _, w := range contextWindows {
		if min == 0 || w < min {
			min = w
		}
	}
	return min
}()

// ContextWindow resolves the context window size for a model name.
// Unknown or empty names get the smallest known window.
func ContextWindow(model string) int {
	needle := strings.ToLower(strings.TrimSpace(model))
	if needle == "" {
		return smallestWindow
	}

	best := 0
	bestLen := 0
	for fragment, window := range contextWindows {
		if len(fragment) > bestLen && strings.Contains(needle, fragment) {
			best = window
			bestLen = len(fragment)
		}
	}
	if best == 0 {
		return smallestWindow
	}
	return best
}
