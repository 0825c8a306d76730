package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// registryEntry holds a provider's metadata and factory
type registryEntry struct {
	meta    ProviderMeta
	factory ProviderFactory
}

// Registry manages provider registration and discovery
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry // key: "provider:authMethod"
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// globalRegistry is the default registry instance
var globalRegistry = NewRegistry()

// Register registers a provider with its metadata and factory
func Register(meta ProviderMeta, factory ProviderFactory) {
	globalRegistry.Register(meta, factory)
}

// Register registers a provider with its metadata and factory
func (r *Registry) Register(meta ProviderMeta, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[meta.Key()] = registryEntry{
		meta:    meta,
		factory: factory,
	}
}

// GetProvider returns a provider instance for the given provider and auth method
func GetProvider(ctx context.Context, provider Provider, authMethod AuthMethod) (LLMProvider, error) {
	return globalRegistry.GetProvider(ctx, provider, authMethod)
}

// GetProvider returns a provider instance for the given provider and auth method
func (r *Registry) GetProvider(ctx context.Context, provider Provider, authMethod AuthMethod) (LLMProvider, error) {
	r.mu.RLock()
	entry, ok := r.entries[makeProviderKey(provider, authMethod)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider not registered: %s:%s", provider, authMethod)
	}
	if !IsReady(entry.meta) {
		return nil, fmt.Errorf("%s:%s: %w", provider, authMethod, ErrNoCredential)
	}
	return entry.factory(ctx)
}

// FirstReady returns an instance of the first registered and configured
// provider among candidates, trying auth methods in registration-key order.
func FirstReady(ctx context.Context, candidates ...Provider) (LLMProvider, error) {
	return globalRegistry.FirstReady(ctx, candidates...)
}

// FirstReady returns an instance of the first configured provider among candidates.
func (r *Registry) FirstReady(ctx context.Context, candidates ...Provider) (LLMProvider, error) {
	ready := r.GetReadyProviders()
	for _, want := range candidates {
		for _, meta := range ready {
			if meta.Provider == want {
				return r.GetProvider(ctx, meta.Provider, meta.AuthMethod)
			}
		}
	}
	return nil, fmt.Errorf("none of %v is configured: %w", candidates, ErrNoCredential)
}

// makeProviderKey creates a unique key for provider and auth method combination
func makeProviderKey(provider Provider, authMethod AuthMethod) string {
	return string(provider) + ":" + string(authMethod)
}

// IsReady checks if all required environment variables are set for a provider
func IsReady(meta ProviderMeta) bool {
	for _, envVar := range meta.EnvVars {
		if LookupEnv(envVar) == "" {
			return false
		}
	}
	return true
}

// LookupEnv returns the first non-empty value among "|"-separated names.
func LookupEnv(names string) string {
	for _, name := range strings.Split(names, "|") {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// GetAllMetas returns all registered provider metadata, sorted by key
func (r *Registry) GetAllMetas() []ProviderMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]ProviderMeta, 0, len(r.entries))
	for _, entry := range r.entries {
		metas = append(metas, entry.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key() < metas[j].Key() })
	return metas
}

// GetReadyProviders returns all providers that have their required env vars configured
func (r *Registry) GetReadyProviders() []ProviderMeta {
	ready := make([]ProviderMeta, 0)
	for _, meta := range r.GetAllMetas() {
		if IsReady(meta) {
			ready = append(ready, meta)
		}
	}
	return ready
}

// ProviderStatus represents the configuration status of a provider
type ProviderStatus string

const (
	StatusAvailable     ProviderStatus = "available"
	StatusNotConfigured ProviderStatus = "not_configured"
)

// ProviderInfo contains provider metadata with its current status
type ProviderInfo struct {
	Meta   ProviderMeta
	Status ProviderStatus
}

// GetProvidersWithStatus returns all providers with their status
func GetProvidersWithStatus() []ProviderInfo {
	return globalRegistry.GetProvidersWithStatus()
}

// GetProvidersWithStatus returns all providers with their status
func (r *Registry) GetProvidersWithStatus() []ProviderInfo {
	metas := r.GetAllMetas()
	result := make([]ProviderInfo, 0, len(metas))
	for _, meta := range metas {
		status := StatusNotConfigured
		if IsReady(meta) {
			status = StatusAvailable
		}
		result = append(result, ProviderInfo{Meta: meta, Status: status})
	}
	return result
}
