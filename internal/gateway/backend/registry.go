package backend

import (
	"fmt"
	"strings"
)

// Entry pairs a backend with the credentials it uses, so error text can be scrubbed of them.
type Entry struct {
	Backend Backend
	Secrets []string
}

// Registry is the read-only set of backends known to the process. It is built once at startup
// and shared by all sessions; no method mutates it.
type Registry struct {
	order    []string
	backends map[string]Backend
	redactor Redactor
}

// NewRegistry rejects blank and duplicate ids (case-insensitive).
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend, len(entries))}
	seen := make(map[string]string, len(entries))
	var secrets []string
	for _, e := range entries {
		if e.Backend == nil {
			return nil, fmt.Errorf("nil backend")
		}
		id := e.Backend.ID()
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("backend id is empty")
		}
		key := strings.ToLower(id)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate backend id %q (already registered as %q)", id, prev)
		}
		seen[key] = id
		r.order = append(r.order, id)
		r.backends[id] = e.Backend
		secrets = append(secrets, e.Secrets...)
	}
	r.redactor = NewRedactor(secrets...)
	return r, nil
}

// Lookup finds a backend by id, falling back to a case-insensitive match.
func (r *Registry) Lookup(id string) (Backend, bool) {
	canonical, ok := r.Canonical(id)
	if !ok {
		return nil, false
	}
	return r.backends[canonical], true
}

// Canonical returns the registered spelling of id under the same matching rules as Lookup.
func (r *Registry) Canonical(id string) (string, bool) {
	if r == nil {
		return "", false
	}
	if _, ok := r.backends[id]; ok {
		return id, true
	}
	for _, known := range r.order {
		if strings.EqualFold(known, id) {
			return known, true
		}
	}
	return "", false
}

// IDs returns registered ids in configuration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) Describe() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		b := r.backends[id]
		out = append(out, Descriptor{ID: id, Kind: b.Kind(), Model: b.Model(), Status: "ready"})
	}
	return out
}

// Redactor covers the secrets of every registered backend.
func (r *Registry) Redactor() Redactor {
	if r == nil {
		return NewRedactor()
	}
	return r.redactor
}
