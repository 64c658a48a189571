package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"
)

// CachedParse is one cache entry: a parsed file plus the content hash it was
// parsed from.
type CachedParse struct {
	File     *File
	Hash     string
	Path     string
	CachedAt time.Time
}

// CachedParser wraps a Parser with content-hash keyed caching, for repeated
// analyses of the same tree in service mode. A hit requires both the path and
// the current content hash to match, so edits invalidate naturally. Returned
// files are shared between callers and must be treated as read-only.
type CachedParser struct {
	inner   Parser
	entries map[string]*CachedParse
	mu      sync.RWMutex
}

// NewCachedParser creates a cache around inner.
func NewCachedParser(inner Parser) *CachedParser {
	return &CachedParser{
		inner:   inner,
		entries: make(map[string]*CachedParse),
	}
}

// ParseFile returns the cached parse when the file content is unchanged,
// delegating to the wrapped parser otherwise.
func (p *CachedParser) ParseFile(ctx context.Context, path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	p.mu.RLock()
	entry, ok := p.entries[path]
	p.mu.RUnlock()
	if ok && entry.Hash == hash {
		return entry.File, nil
	}

	file, err := p.inner.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[path] = &CachedParse{
		File:     file,
		Hash:     hash,
		Path:     path,
		CachedAt: time.Now(),
	}
	p.mu.Unlock()

	return file, nil
}

// Invalidate removes one entry.
func (p *CachedParser) Invalidate(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, path)
}

// InvalidateAll clears the cache.
func (p *CachedParser) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*CachedParse)
}

// Size returns the number of cached entries.
func (p *CachedParser) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Prune removes entries older than maxAge and returns how many were removed.
func (p *CachedParser) Prune(maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	pruned := 0
	for path, entry := range p.entries {
		if now.Sub(entry.CachedAt) > maxAge {
			delete(p.entries, path)
			pruned++
		}
	}
	return pruned
}
