package stt

import (
	"fmt"
	"sort"
	"strings"

	"audioscribe/internal/apperr"
)

// Registry maps provider names to providers and names the default one.
type Registry struct {
	providers map[string]Provider
	def       string
}

// NewRegistry builds a registry. def must name one of providers.
func NewRegistry(def string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	def = strings.ToLower(def)
	if _, ok := r.providers[def]; !ok {
		return nil, fmt.Errorf("stt: default provider %q is not registered", def)
	}
	r.def = def
	return r, nil
}

// Default returns the name of the default provider.
func (r *Registry) Default() string { return r.def }

// Get returns the provider by name; an empty name selects the default.
// Unknown names are a validation error.
func (r *Registry) Get(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, apperr.Validation("unknown provider").
			WithDetail("provider", name).
			WithDetail("supported", r.Names())
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
