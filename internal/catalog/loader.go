package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/alverad/inout/internal/logger"
	"github.com/alverad/inout/pkg/inout"
)

var log = logger.ForComponent("catalog")

// Loader reads manifest directories and keeps one generation of bindings
// registered in a store. Reload swaps generations: the new bindings are
// registered before the previous ones are disposed, so a provider for a
// type that exists in both generations never disappears entirely.
type Loader struct {
	dirs  []string
	store *inout.Store

	mu      sync.Mutex
	current inout.Disposer
}

func NewLoader(dirs []string, store *inout.Store) *Loader {
	return &Loader{dirs: dirs, store: store}
}

// Load registers all bindings found in the manifest directories. Files
// that fail to parse are skipped with a warning; a broken manifest must
// not take down the rest of the catalog.
func (l *Loader) Load() error {
	entries, count := l.collect()

	disposer, err := l.store.Register(entries, nil)
	if err != nil {
		return fmt.Errorf("register catalog bindings: %w", err)
	}

	l.mu.Lock()
	prev := l.current
	l.current = disposer
	l.mu.Unlock()

	if prev != nil {
		prev()
	}

	log.Info("catalog loaded", "bindings", count, "dirs", len(l.dirs))
	return nil
}

// Reload is Load under its swap semantics; named for call sites that react
// to file changes.
func (l *Loader) Reload() error {
	return l.Load()
}

// Unload disposes the current generation.
func (l *Loader) Unload() {
	l.mu.Lock()
	prev := l.current
	l.current = nil
	l.mu.Unlock()

	if prev != nil {
		prev()
	}
}

func (l *Loader) collect() ([]inout.ProviderEntry, int) {
	var entries []inout.ProviderEntry

	for _, dir := range l.dirs {
		files, err := manifestFiles(dir)
		if err != nil {
			log.Warn("cannot read catalog dir", "dir", dir, "error", err)
			continue
		}

		for _, path := range files {
			m, err := ReadManifest(path)
			if err != nil {
				log.Warn("skipping manifest", "path", path, "error", err)
				continue
			}

			for i, spec := range m.Bindings {
				hint, value, err := ParseBinding(spec)
				if err != nil {
					log.Warn("skipping binding", "path", path, "index", i, "error", err)
					continue
				}
				entries = append(entries, inout.ProviderEntry{
					Hint:     hint,
					Provider: constProvider(value),
					Weight:   spec.Weight,
				})
			}
		}
	}

	return entries, len(entries)
}

// ReadManifest parses a single manifest file, transcoding to UTF-8 first.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	data, err = DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return &m, nil
}

func manifestFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, filepath.Join(dir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

func constProvider(v any) inout.Provider {
	return func() (any, error) { return v, nil }
}
