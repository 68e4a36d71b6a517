// Package llm provides AI text-generation providers and the retrying
// caller that dispatches to them.
package llm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/aestimo/internal/interfaces"
)

var (
	// ErrUnknownProvider indicates a provider name with no registered
	// implementation. This is a configuration error and is never retried.
	ErrUnknownProvider = errors.New("unknown generation provider")

	// ErrEmptyResult indicates a provider call succeeded at the transport
	// level but produced no usable text. Treated as a failed attempt.
	ErrEmptyResult = errors.New("provider returned empty result")

	// ErrExhausted indicates every retry attempt failed. Callers degrade
	// the affected sub-analysis rather than aborting the pipeline.
	ErrExhausted = errors.New("generation attempts exhausted")
)

// Registry maps provider names to Generator implementations. The registry
// is open: any Generator can be registered under its name, so adding a
// provider does not require touching dispatch code.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]interfaces.Generator
	defaultName string
}

// NewRegistry creates a registry whose Get falls back to defaultName when
// asked for an empty provider name.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		providers:   make(map[string]interfaces.Generator),
		defaultName: strings.ToLower(defaultName),
	}
}

// Register adds a provider under its Name.
func (r *Registry) Register(g interfaces.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(g.Name())] = g
}

// Get returns the provider for name, or the default provider when name is
// empty. Unknown names return ErrUnknownProvider.
func (r *Registry) Get(name string) (interfaces.Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lookup := strings.ToLower(strings.TrimSpace(name))
	if lookup == "" {
		lookup = r.defaultName
	}

	g, ok := r.providers[lookup]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, lookup)
	}
	return g, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
