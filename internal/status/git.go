package status

import (
	"os"
	"path/filepath"
	"strings"
)

// Branch returns the current git branch for dir, walking parent
// directories until a .git is found. Detached HEAD yields a short
// commit hash; no repository yields "".
//
// This reads .git/HEAD directly instead of shelling out to git: the
// aggregator runs on every status refresh and a file read is the only
// I/O budget it has.
func Branch(dir string) string {
	gitDir := findGitDir(dir)
	if gitDir == "" {
		return ""
	}

	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))

	if ref, ok := strings.CutPrefix(head, "ref: "); ok {
		return strings.TrimPrefix(ref, "refs/heads/")
	}
	// Detached HEAD: short hash.
	if len(head) >= 7 {
		return head[:7]
	}
	return head
}

// findGitDir locates the repository's git directory for dir, following
// worktree indirection (.git as a "gitdir: ..." file).
func findGitDir(dir string) string {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return candidate
			}
			// Worktree or submodule: .git is a pointer file.
			if target := readGitDirPointer(candidate, dir); target != "" {
				return target
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func readGitDirPointer(path, base string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	return target
}
