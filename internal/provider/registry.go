package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"textrefine/internal/config"
	"textrefine/internal/models"
)

// ErrUnknownProfile indicates the requested profile is not registered.
var ErrUnknownProfile = errors.New("unknown profile")

// ErrDuplicateProfile indicates an attempt to register the same profile twice.
var ErrDuplicateProfile = errors.New("profile already registered")

// Registry maps profile names to the endpoint settings used for a call.
type Registry struct {
	mu          sync.RWMutex
	profiles    map[string]models.ChatConfig
	defaultName string
}

// NewRegistry constructs an empty registry whose default profile is defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		profiles:    make(map[string]models.ChatConfig),
		defaultName: defaultName,
	}
}

// NewRegistryFromConfig registers every configured profile.
func NewRegistryFromConfig(cfg config.Config) (*Registry, error) {
	registry := NewRegistry(cfg.DefaultProfile)
	for _, profile := range cfg.Profiles {
		if err := registry.Register(profile.Name, profile.ChatConfig()); err != nil {
			return nil, err
		}
	}
	if _, err := registry.Lookup(""); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	return registry, nil
}

// Register adds a named profile.
func (r *Registry) Register(name string, cfg models.ChatConfig) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("profile name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProfile, name)
	}
	r.profiles[name] = cfg
	return nil
}

// Lookup returns the settings for name; an empty name selects the default profile.
func (r *Registry) Lookup(name string) (models.ChatConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.defaultName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.profiles[name]
	if !ok {
		return models.ChatConfig{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return cfg, nil
}

// Names lists the registered profiles in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
