// Package registry is the component directory a host populates before
// mounting widgets. Plugins install factories under fixed tag names; hosts
// look them up by name and create as many instances as they need.
package registry

import (
	"fmt"
	"sort"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// Props is what a host hands a factory when mounting a component.
type Props struct {
	Initial []message.Message
	Handler conversation.Handler
	Logger  zerolog.Logger
}

// Component is a mounted widget: a bubbletea model that owns a conversation.
type Component interface {
	tea.Model
	Conversation() *conversation.Conversation
}

// Factory creates a fresh Component. Each call must return an independent
// instance with its own conversation.
type Factory func(Props) (Component, error)

// Plugin installs one or more factories into a Registry.
type Plugin interface {
	Install(r *Registry) error
}

// Registry is a thread-safe directory of component factories keyed by tag
// name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. If a factory with the same name already
// exists, it is replaced; avoiding double registration is up to the host.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = f
}

// Lookup returns the factory registered under name and true, or nil and false
// if there is none.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered tag names sorted alphabetically.
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

// Use installs p into the registry.
func (r *Registry) Use(p Plugin) error {
	if err := p.Install(r); err != nil {
		return fmt.Errorf("registry: install plugin: %w", err)
	}
	return nil
}

// Mount looks up name and creates a component from it.
func (r *Registry) Mount(name string, props Props) (Component, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("registry: unknown component %q", name)
	}
	c, err := f(props)
	if err != nil {
		return nil, fmt.Errorf("registry: mount %q: %w", name, err)
	}
	return c, nil
}

var std = New()

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry { return std }

// Register adds a factory to the default registry.
func Register(name string, f Factory) { std.Register(name, f) }

// Lookup returns a factory from the default registry.
func Lookup(name string) (Factory, bool) { return std.Lookup(name) }

// Use installs p into the default registry.
func Use(p Plugin) error { return std.Use(p) }

// Mount creates a component from the default registry.
func Mount(name string, props Props) (Component, error) { return std.Mount(name, props) }
