package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Factory loads a provider-local model on a device.
type Factory[T any] func(ctx context.Context, model string, device Device) (T, error)

// Registry maps provider prefixes to factories. Model identifiers whose first
// path element is not a registered provider go to the fallback provider, so
// Hugging Face ids such as "openai/whisper-large-v3" need no prefix.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
	fallback  string
}

// NewRegistry creates a registry for one engine kind.
func NewRegistry[T any](kind, fallback string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
		fallback:  fallback,
	}
}

// Register adds a provider.
func (r *Registry[T]) Register(provider string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Resolve returns the provider and provider-local model name for a model id.
func (r *Registry[T]) Resolve(model string) (provider, name string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix, rest, _ := strings.Cut(model, "/")
	if _, ok := r.factories[prefix]; ok && prefix != r.fallback {
		return prefix, rest
	}
	return r.fallback, model
}

// Load resolves model and loads it on device.
func (r *Registry[T]) Load(ctx context.Context, model string, device Device) (T, error) {
	provider, name := r.Resolve(model)

	r.mu.RLock()
	f, ok := r.factories[provider]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, Errorf(KindModelLoad, "load "+r.kind, "no provider for model %q", model)
	}

	m, err := f(ctx, name, device)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s model %q: %w", r.kind, model, err)
	}
	return m, nil
}
