package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory builds a provider from its configuration
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// Registry maps provider names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// DefaultRegistry knows every provider shipped with the server
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", func(cfg ProviderConfig) (Provider, error) { return NewOpenAIProvider(cfg) })
	r.Register("anthropic", func(cfg ProviderConfig) (Provider, error) { return NewAnthropicProvider(cfg) })
	r.Register("ollama", func(cfg ProviderConfig) (Provider, error) { return NewOllamaProvider(cfg), nil })
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

// Build creates the named provider
func (r *Registry) Build(name string, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: unknown provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(cfg)
}

// Names lists registered providers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
