// Package staging copies the files that produced entities into a per-run
// staging directory, and removes staging directories afterwards. Both
// directions degrade per file: staging a tree is best-effort bookkeeping, not
// part of the artifact contract.
package staging

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/schemalens/schemalens/internal/diag"
)

const (
	stageStage   = "stage"
	stageCleanup = "cleanup"
)

// Prefix is the staging directory name prefix; cleanup tooling matches on it.
const Prefix = "processed_entities_"

// Stager stages entity files under a base directory.
type Stager struct {
	base string
}

// New creates a Stager writing under base.
func New(base string) *Stager {
	return &Stager{base: base}
}

// Stage creates `<base>/processed_entities_<suffix>/` and copies each file
// into it, base names preserved. A second file with an already-used base name
// gets a numeric suffix before its extension. Per-file failures are recorded
// and skipped; only failing to create the directory itself is fatal. The
// directory path is returned even when some copies failed.
func (s *Stager) Stage(ctx context.Context, files []string, diags *diag.Collector) (string, error) {
	dir := filepath.Join(s.base, Prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory %s: %w", dir, err)
	}

	used := make(map[string]bool, len(files))
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return dir, err
		}
		name := uniqueName(used, filepath.Base(src))
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			diags.Add(diag.New(stageStage, diag.CodeStageCopyFailed, diag.Warning, err.Error()).WithFile(src))
			continue
		}
		used[name] = true
	}
	return dir, nil
}

// uniqueName returns base, or base with `_<n>` inserted before the extension
// when base is already taken. Same-named entity files from different packages
// both survive staging this way.
func uniqueName(used map[string]bool, base string) string {
	if !used[base] {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !used[candidate] {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// Cleanup removes a directory tree. Every failure is recorded per path and
// the removal keeps going, so callers can always attempt cleanup without
// guarding. A root that does not exist is not an anomaly.
func Cleanup(root string, diags *diag.Collector) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return
	}

	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			diags.Add(diag.New(stageCleanup, diag.CodeCleanupFailed, diag.Warning, err.Error()).WithFile(path))
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			diags.Add(diag.New(stageCleanup, diag.CodeCleanupFailed, diag.Warning, err.Error()).WithFile(path))
		}
		return nil
	})

	// Directories bottom-up, the root last.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			diags.Add(diag.New(stageCleanup, diag.CodeCleanupFailed, diag.Warning, err.Error()).WithFile(dirs[i]))
		}
	}
}
