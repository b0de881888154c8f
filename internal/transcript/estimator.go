// Package transcript estimates AI context-window utilization from a
// session transcript file (newline-delimited JSON, one record per line,
// produced by the host environment).
package transcript

import (
	"bufio"
	"encoding/json"
	"os"
)

// Method identifies how a ContextUsage was derived.
type Method string

const (
	// MethodUsageMetadata means the most recent record's usage block was
	// taken as authoritative. Providers report cumulative usage, so the
	// latest block already covers the whole session.
	MethodUsageMetadata Method = "usage_metadata"

	// MethodCharEstimate means no record carried usage metadata and the
	// total was approximated from character counts at ~4 chars/token.
	// A rough heuristic, not a tokenizer.
	MethodCharEstimate Method = "char_estimate"
)

// ContextUsage describes estimated token consumption relative to a
// model's context window.
type ContextUsage struct {
	UsedTokens int     `json:"used_tokens"`
	MaxTokens  int     `json:"max_tokens"`
	Percentage float64 `json:"percentage"`
	Method     Method  `json:"method"`
}

// maxLineSize bounds scanner buffers; transcript lines carrying whole
// tool results can run to megabytes.
const maxLineSize = 8 * 1024 * 1024

// usageBlock mirrors the provider usage metadata on a transcript record.
type usageBlock struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

func (u usageBlock) total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

func (u usageBlock) empty() bool { return u.total() == 0 }

// record is the subset of a transcript line we care about. Usage may sit
// at the top level or nested under message depending on record type.
type record struct {
	Usage   *usageBlock `json:"usage"`
	Message *struct {
		Content json.RawMessage `json:"content"`
		Usage   *usageBlock     `json:"usage"`
	} `json:"message"`
	Content json.RawMessage `json:"content"`
	Summary string          `json:"summary"`
}

// contentPart is one element of a structured content array.
type contentPart struct {
	Text string `json:"text"`
}

// Estimate streams the transcript at path and returns estimated usage
// against model's context window.
//
// The file is read in a single forward pass: this runs on every status
// refresh tick and must stay well under 100ms for transcripts with
// thousands of lines. Malformed lines are skipped. A missing or empty
// file yields zero usage, not an error.
func Estimate(path, model string) ContextUsage {
	usage := ContextUsage{
		MaxTokens: ContextWindow(model),
		Method:    MethodCharEstimate,
	}

	f, err := os.Open(path)
	if err != nil {
		return usage
	}
	defer f.Close()

	var (
		lastUsage usageBlock
		haveUsage bool
		charCount int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		if u := rec.usageBlock(); u != nil && !u.empty() {
			lastUsage = *u
			haveUsage = true
		}
		if !haveUsage {
			charCount += rec.charLen()
		}
	}
	// Scanner errors (oversized line, truncated tail) leave us with
	// whatever was parsed so far; partial data beats no data here.

	if haveUsage {
		usage.UsedTokens = lastUsage.total()
		usage.Method = MethodUsageMetadata
	} else {
		usage.UsedTokens = charCount / 4
	}
	usage.Percentage = clampPercent(usage.UsedTokens, usage.MaxTokens)
	return usage
}

// usageBlock returns the record's usage metadata, wherever it lives.
func (r *record) usageBlock() *usageBlock {
	if r.Message != nil && r.Message.Usage != nil {
		return r.Message.Usage
	}
	return r.Usage
}

// charLen sums the character length of the record's textual content.
// Content is either a plain string or an array of typed parts.
func (r *record) charLen() int {
	n := len(r.Summary)
	for _, raw := range []json.RawMessage{r.Content, r.messageContent()} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			n += len(s)
			continue
		}
		var parts []contentPart
		if err := json.Unmarshal(raw, &parts); err == nil {
			for _, p := range parts {
				n += len(p.Text)
			}
		}
	}
	return n
}

func (r *record) messageContent() json.RawMessage {
	if r.Message == nil {
		return nil
	}
	return r.Message.Content
}

// clampPercent computes used/max*100 clamped to [0, 100]. Providers can
// report usage past the nominal window (compaction in flight); values
// above 100% are clamped at this boundary, never propagated raw.
func clampPercent(used, max int) float64 {
	if max <= 0 {
		return 0
	}
	pct := float64(used) / float64(max) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
