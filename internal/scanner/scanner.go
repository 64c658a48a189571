package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/schemalens/schemalens/internal/diag"
)

const stage = "scan"

// DefaultMaxFileSize caps how large a file the classifier will read.
const DefaultMaxFileSize = 1 << 20

// skipDirs are directory names never descended into: version control metadata
// and build output hold no entity declarations worth the walk.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".gradle":      true,
	".idea":        true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"out":          true,
}

// Options configure a Scanner. Zero values select defaults.
type Options struct {
	// Classifier decides candidacy; nil selects DefaultClassifier.
	Classifier *Classifier
	// Extensions are the source file extensions considered; nil selects .java.
	Extensions []string
	// MaxFileSize is the classification size cap in bytes.
	MaxFileSize int64
	// Concurrency bounds parallel classification; 0 selects GOMAXPROCS.
	Concurrency int
}

// Scanner selects candidate entity files from a working tree.
type Scanner struct {
	classifier  *Classifier
	extensions  map[string]bool
	maxFileSize int64
	concurrency int
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	s := &Scanner{
		classifier:  opts.Classifier,
		maxFileSize: opts.MaxFileSize,
		concurrency: opts.Concurrency,
		extensions:  make(map[string]bool),
	}
	if s.classifier == nil {
		s.classifier = DefaultClassifier()
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.concurrency <= 0 {
		s.concurrency = runtime.GOMAXPROCS(0)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".java"}
	}
	for _, ext := range exts {
		s.extensions[ext] = true
	}
	return s
}

// Result is the outcome of one scan.
type Result struct {
	// Candidates are the files that plausibly declare persistent entities,
	// sorted for deterministic downstream processing.
	Candidates []string

	// TypeIndex maps a simple type name, taken from the file base name, to
	// every source file carrying it. It covers all source files, candidate or
	// not, and is how supporting types (superclasses, embeddables, enums) are
	// located later without a second walk.
	TypeIndex map[string][]string

	// SourceFiles is the total number of source files seen.
	SourceFiles int
}

// Scan walks the tree under root and classifies every source file.
// Classification fans out across a bounded worker group; unreadable files are
// recorded as diagnostics and skipped. A missing or unreadable root is fatal.
func (s *Scanner) Scan(ctx context.Context, root string, diags *diag.Collector) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("working tree %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working tree %s: not a directory", root)
	}

	result := &Result{TypeIndex: make(map[string][]string)}
	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			diags.Add(diag.New(stage, diag.CodeUnreadableFile, diag.Warning, err.Error()).WithFile(path))
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ext := filepath.Ext(d.Name())
		if !s.extensions[ext] {
			return nil
		}
		result.SourceFiles++
		base := strings.TrimSuffix(d.Name(), ext)
		result.TypeIndex[base] = append(result.TypeIndex[base], path)

		if fi, err := d.Info(); err == nil && fi.Size() > s.maxFileSize {
			msg := fmt.Sprintf("%d bytes exceeds the %d byte classification cap", fi.Size(), s.maxFileSize)
			diags.Add(diag.New(stage, diag.CodeFileTooLarge, diag.Warning, msg).WithFile(path))
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	matched := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				diags.Add(diag.New(stage, diag.CodeUnreadableFile, diag.Warning, err.Error()).WithFile(path))
				return nil
			}
			matched[i] = s.classifier.Classify(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ok := range matched {
		if ok {
			result.Candidates = append(result.Candidates, files[i])
		}
	}
	sort.Strings(result.Candidates)
	return result, nil
}
