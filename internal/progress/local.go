package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCandidates are the local milestone files checked in priority
// order, relative to the project directory. The first file that parses
// and yields a non-empty name wins; lower-priority files are never
// merged in, so a record's provenance stays unambiguous.
var DefaultCandidates = []string{
	filepath.Join(".devbar", "milestone.json"),
	"milestone.json",
	".milestone.yaml",
	"package.json",
}

// localMilestone is the nested name/completed/total/timeRemaining shape
// a candidate file exposes.
type localMilestone struct {
	Name          string `json:"name" yaml:"name"`
	Completed     int    `json:"completed" yaml:"completed"`
	Total         int    `json:"total" yaml:"total"`
	TimeRemaining string `json:"timeRemaining" yaml:"timeRemaining"`
}

// localDoc covers the shapes milestone data hides in: fields at the top
// level, nested under "milestone", or (package.json) under
// "devbar.milestone". Absence of the expected path means "this file has
// no milestone", not an error.
type localDoc struct {
	localMilestone `yaml:",inline"`
	Milestone      *localMilestone `json:"milestone" yaml:"milestone"`
	Devbar         *struct {
		Milestone *localMilestone `json:"milestone" yaml:"milestone"`
	} `json:"devbar" yaml:"devbar"`
}

// pick returns the most specific milestone present in the document.
func (d *localDoc) pick() localMilestone {
	if d.Devbar != nil && d.Devbar.Milestone != nil && d.Devbar.Milestone.Name != "" {
		return *d.Devbar.Milestone
	}
	if d.Milestone != nil && d.Milestone.Name != "" {
		return *d.Milestone
	}
	return d.localMilestone
}

// readLocal walks the candidate files under dir and returns the first
// milestone with a non-empty name. Unreadable or unparsable candidates
// are skipped, the chain moves on.
func readLocal(dir string, candidates []string) (Record, bool) {
	for _, rel := range candidates {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, rel)
		}
		m, ok := readCandidate(path)
		if !ok || m.Name == "" {
			continue
		}
		if m.Completed < 0 {
			m.Completed = 0
		}
		if m.Total < 0 {
			m.Total = 0
		}
		return Record{
			Name:          m.Name,
			Completed:     m.Completed,
			Total:         m.Total,
			TimeRemaining: m.TimeRemaining,
			Source:        SourceLocal,
		}, true
	}
	return Record{}, false
}

func readCandidate(path string) (localMilestone, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return localMilestone{}, false
	}

	var doc localDoc
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return localMilestone{}, false
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return localMilestone{}, false
		}
	}

	// package.json's own top-level "name" is the npm package name; the
	// only milestone path in that file is devbar.milestone.
	if filepath.Base(path) == "package.json" {
		if doc.Devbar != nil && doc.Devbar.Milestone != nil {
			return *doc.Devbar.Milestone, true
		}
		return localMilestone{}, false
	}
	return doc.pick(), true
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
