package transports

import (
	"fmt"
	"sort"
	"strings"
)

// DialerFactory builds a Dialer from free-form provider settings.
type DialerFactory func(settings map[string]any) (Dialer, error)

// Registry maps provider names to dialer factories.
type Registry struct {
	factories map[string]DialerFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]DialerFactory)}
}

func (r *Registry) Register(name string, factory DialerFactory) {
	r.factories[normalizeName(name)] = factory
}

func (r *Registry) Build(provider string, settings map[string]any) (Dialer, error) {
	fn := r.factories[normalizeName(provider)]
	if fn == nil {
		return nil, fmt.Errorf("transport provider not registered: %s", provider)
	}
	return fn(settings)
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
