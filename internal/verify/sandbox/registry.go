// Package sandbox routes execution requests to the local or remote backend.
package sandbox

import (
	"fmt"
	"sort"
	"sync"

	"dailycode/internal/verify/harness"
	"dailycode/internal/verify/model"
)

// BackendKind selects where a language runs.
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

// LanguageSpec pins how one language is executed.
type LanguageSpec struct {
	ID      model.Language
	Backend BackendKind
	// Runtime and Version are the execution service's language pin.
	Runtime  string
	Version  string
	FileName string
}

// Validate checks that a remote language can actually be generated and run.
func (s LanguageSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("language id is required")
	}
	switch s.Backend {
	case BackendLocal:
		if s.ID != model.LanguageJavaScript {
			return fmt.Errorf("%s: only javascript can run locally", s.ID)
		}
	case BackendRemote:
		if _, ok := harness.Lookup(s.ID); !ok {
			return fmt.Errorf("%s: no harness generator, supported: %v", s.ID, harness.Languages())
		}
		if s.Runtime == "" || s.Version == "" {
			return fmt.Errorf("%s: runtime and version are required", s.ID)
		}
	default:
		return fmt.Errorf("%s: unknown backend %q", s.ID, s.Backend)
	}
	return nil
}

// DefaultLanguages is the built-in routing table.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{ID: model.LanguageJavaScript, Backend: BackendLocal},
		{ID: model.LanguagePython, Backend: BackendRemote, Runtime: "python", Version: "3.10.0", FileName: "main.py"},
		{ID: model.LanguageJava, Backend: BackendRemote, Runtime: "java", Version: "15.0.2", FileName: "Main.java"},
		{ID: model.LanguageCPP, Backend: BackendRemote, Runtime: "c++", Version: "10.2.0", FileName: "main.cpp"},
		{ID: model.LanguageRust, Backend: BackendRemote, Runtime: "rust", Version: "1.68.2", FileName: "main.rs"},
	}
}

// Registry maps languages to their spec.
type Registry struct {
	mu    sync.RWMutex
	specs map[model.Language]LanguageSpec
}

// NewRegistry builds a registry from specs; later entries override earlier ones.
func NewRegistry(specs ...LanguageSpec) (*Registry, error) {
	r := &Registry{specs: make(map[model.Language]LanguageSpec, len(specs))}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with the built-in languages.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultLanguages()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds or replaces one language.
func (r *Registry) Register(spec LanguageSpec) error {
	spec.ID = model.NormalizeLanguage(string(spec.ID))
	if err := spec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.specs[spec.ID] = spec
	r.mu.Unlock()
	return nil
}

// Lookup finds the spec for lang.
func (r *Registry) Lookup(lang model.Language) (LanguageSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[lang]
	return spec, ok
}

// Languages lists registered languages, sorted.
func (r *Registry) Languages() []LanguageSpec {
	r.mu.RLock()
	out := make([]LanguageSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
