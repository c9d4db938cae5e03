// Package species loads species definition files and serves them to the herd.
package species

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/world"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DirFile is the definition file name inside a per-species directory.
const DirFile = "species.yaml"

// Summary describes a loaded species.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Behaviors int    `json:"behaviors"`
	Lines     int    `json:"lines"`
}

// Registry holds the parsed species by id.
type Registry struct {
	species map[string]behavior.Species
	paths   map[string]string // file path -> id
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		species: make(map[string]behavior.Species),
		paths:   make(map[string]string),
		logger:  logger,
	}
}

// Parse decodes a species file. The record is checked by building a catalog
// from it, so a file that parses but cannot drive an agent is rejected.
func Parse(raw []byte) (behavior.Species, error) {
	var sp behavior.Species
	if err := yaml.Unmarshal(raw, &sp); err != nil {
		return sp, fmt.Errorf("decode species: %w", err)
	}
	if _, err := behavior.NewCatalog(sp); err != nil {
		return sp, err
	}
	return sp, nil
}

// IDFromPath maps <dir>/<id>.yaml and <dir>/<id>/species.yaml to <id>.
// It reports false for files that are not species definitions.
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if base == DirFile {
		return filepath.Base(filepath.Dir(path)), true
	}
	ext := filepath.Ext(base)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}

// LoadFile parses one species file and registers it under the id derived
// from its path. A broken file leaves any previous version in place.
func (r *Registry) LoadFile(path string) (string, error) {
	id, ok := IDFromPath(path)
	if !ok {
		return "", fmt.Errorf("load %s: not a species file", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sp, err := Parse(raw)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	if sp.Name == "" {
		sp.Name = id
	}

	r.mu.Lock()
	r.species[id] = sp
	r.paths[path] = id
	r.mu.Unlock()
	r.logger.Info("species loaded",
		zap.String("id", id),
		zap.String("name", sp.Name),
		zap.Int("behaviors", len(sp.Behaviors)),
		zap.Int("lines", len(sp.Lines)))
	return id, nil
}

// LoadDir loads every species file directly in dir or one level below it.
// Broken files are logged and skipped.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read species dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			path = filepath.Join(path, DirFile)
			if _, err := os.Stat(path); err != nil {
				continue
			}
		} else if _, ok := IDFromPath(path); !ok {
			continue
		}
		if _, err := r.LoadFile(path); err != nil {
			r.logger.Warn("skip species file", zap.String("path", path), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Forget drops the species registered from path.
func (r *Registry) Forget(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.paths[path]
	if !ok {
		return "", false
	}
	delete(r.paths, path)
	delete(r.species, id)
	return id, true
}

// Put registers a species directly.
func (r *Registry) Put(id string, sp behavior.Species) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.species[id] = sp
}

// Get returns a species by id.
func (r *Registry) Get(id string) (behavior.Species, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.species[id]
	return sp, ok
}

// LookupSpecies implements world.SpeciesSource.
func (r *Registry) LookupSpecies(_ context.Context, id string) (behavior.Species, error) {
	sp, ok := r.Get(id)
	if !ok {
		return sp, fmt.Errorf("lookup %q: %w", id, world.ErrSpeciesNotFound)
	}
	return sp, nil
}

// List returns a summary of every species, sorted by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.species))
	for id, sp := range r.species {
		out = append(out, Summary{ID: id, Name: sp.Name, Behaviors: len(sp.Behaviors), Lines: len(sp.Lines)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
