// Package progress resolves milestone progress through a fallback
// chain: remote tracker CLI, then local project files, then a default
// record. Remote fetches run on background goroutines so the caller
// never blocks on network I/O.
package progress

// Source records which fallback tier produced a Record. Provenance is
// never blended: a record comes from exactly one tier.
type Source string

const (
	// SourceRemote means the tracker CLI produced the record.
	SourceRemote Source = "remote"

	// SourceLocal means an on-disk project file produced the record.
	SourceLocal Source = "local"

	// SourceDefault means every tier failed and this is the hard-coded
	// placeholder. All counts are zero.
	SourceDefault Source = "default"
)

// Record is a normalized milestone progress snapshot.
// Completed and Total are independently clamped to >= 0 by whichever
// tier produced them. Total == 0 is valid ("no known scope");
// consumers must not divide by it.
type Record struct {
	Name          string `json:"name"`
	Completed     int    `json:"completed"`
	Total         int    `json:"total"`
	TimeRemaining string `json:"time_remaining"`
	Source        Source `json:"source"`
}

// DefaultRecord is what Resolve returns when no tier yields data:
// degraded output, never a crash or a blank line.
func DefaultRecord() Record {
	return Record{Source: SourceDefault}
}
