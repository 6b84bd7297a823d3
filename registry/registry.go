// Package registry holds the server's catalog of tools. A Registry is
// populated at startup, sealed when the first session begins, and shared
// read-only by every dispatch afterwards.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

var (
	// ErrSealed is returned when registering after the catalog was advertised.
	ErrSealed = errors.New("registry sealed: tools cannot change once advertised")
	// ErrEmptyName is returned for a descriptor without a name.
	ErrEmptyName = errors.New("tool name is empty")
	// ErrNilHandler is returned for a tool without a handler.
	ErrNilHandler = errors.New("tool handler is nil")
)

// Handler executes a tool with validated arguments. Returned errors are
// reported to the peer as DomainError; they never end the session.
type Handler interface {
	Call(ctx context.Context, args protocol.Arguments) (protocol.Value, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args protocol.Arguments) (protocol.Value, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, args protocol.Arguments) (protocol.Value, error) {
	return f(ctx, args)
}

// Tool pairs a descriptor with its handler.
type Tool struct {
	Descriptor protocol.ToolDescriptor
	Handler    Handler
}

// Registry is a name-keyed tool catalog that preserves registration order.
type Registry struct {
	mu       sync.RWMutex
	tools    []protocol.ToolDescriptor
	handlers map[string]Handler
	sealed   bool
}

// New constructs a Registry holding the given tools. It fails on the first
// invalid or duplicate tool.
func New(tools ...Tool) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(tools))}
	for _, t := range tools {
		if err := r.Register(t.Descriptor, t.Handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Returns *protocol.DuplicateToolError if the name is
// taken and ErrSealed once the registry has been sealed.
func (r *Registry) Register(desc protocol.ToolDescriptor, h Handler) error {
	if desc.Name == "" {
		return ErrEmptyName
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, desc.Name)
	}
	if desc.InputSchema.Type == "" {
		desc.InputSchema.Type = protocol.TypeObject
	}
	if err := checkSchema(desc.InputSchema); err != nil {
		return fmt.Errorf("tool %s: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: %s", ErrSealed, desc.Name)
	}
	if r.handlers == nil {
		r.handlers = make(map[string]Handler)
	}
	if _, exists := r.handlers[desc.Name]; exists {
		return &protocol.DuplicateToolError{Name: desc.Name}
	}
	r.tools = append(r.tools, desc)
	r.handlers[desc.Name] = h
	return nil
}

// Add registers a prepared Tool.
func (r *Registry) Add(t Tool) error { return r.Register(t.Descriptor, t.Handler) }

// Seal freezes the catalog. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the descriptor and handler for name, or
// *protocol.UnknownToolError.
func (r *Registry) Lookup(name string) (protocol.ToolDescriptor, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return protocol.ToolDescriptor{}, nil, &protocol.UnknownToolError{Name: name}
	}
	for _, t := range r.tools {
		if t.Name == name {
			return t, h, nil
		}
	}
	// handlers and tools are always updated together
	return protocol.ToolDescriptor{}, nil, &protocol.UnknownToolError{Name: name}
}

// List returns a copy of the descriptors in registration order.
func (r *Registry) List() []protocol.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func checkSchema(s protocol.InputSchema) error {
	if s.Type != protocol.TypeObject {
		return fmt.Errorf("input schema type must be object, got %q", s.Type)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required property missing: %s", name)
		}
	}
	for name, p := range s.Properties {
		if err := checkProperty(name, p); err != nil {
			return err
		}
	}
	return nil
}

func checkProperty(path string, p protocol.SchemaProperty) error {
	if !protocol.KnownType(p.Type) {
		return fmt.Errorf("property %s has unsupported type %q", path, p.Type)
	}
	if p.Items != nil {
		if err := checkProperty(path+"[]", *p.Items); err != nil {
			return err
		}
	}
	for _, name := range p.Required {
		if _, ok := p.Properties[name]; !ok {
			return fmt.Errorf("required property missing: %s.%s", path, name)
		}
	}
	for name, sub := range p.Properties {
		if err := checkProperty(path+"."+name, sub); err != nil {
			return err
		}
	}
	return nil
}
