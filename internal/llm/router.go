package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoProvider reports a model whose provider has no gateway.
var ErrNoProvider = errors.New("llm: no gateway for provider")

// Router is a Gateway that dispatches each call by the provider prefix of
// opts.Model. Models whose provider has no route go to the fallback.
type Router struct {
	routes   map[string]Gateway
	fallback Gateway
}

// NewRouter creates a Router. fallback may be nil, in which case unrouted
// models fail with ErrNoProvider.
func NewRouter(fallback Gateway) *Router {
	return &Router{routes: make(map[string]Gateway), fallback: fallback}
}

// Route sends models of provider (as returned by ProviderOf) to g.
func (r *Router) Route(provider string, g Gateway) *Router {
	r.routes[provider] = g
	return r
}

// Routed reports whether provider has its own gateway.
func (r *Router) Routed(provider string) bool {
	_, ok := r.routes[provider]
	return ok
}

// Invoke forwards to the gateway for opts.Model's provider.
func (r *Router) Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	provider := ProviderOf(opts.Model)
	if g, ok := r.routes[provider]; ok {
		return g.Invoke(ctx, messages, opts)
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%w %q (model %s)", ErrNoProvider, provider, opts.Model)
	}
	return r.fallback.Invoke(ctx, messages, opts)
}
