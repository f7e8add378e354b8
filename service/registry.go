package service

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrInvalidService  = errors.New("invalid service")
)

// Entry is a registered service and its methods by name.
type Entry struct {
	Service Service
	Methods map[string]*MethodDescriptor
}

// Builder collects services during startup. It is not safe for concurrent use.
type Builder struct {
	entries map[string]*Entry
}

func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]*Entry)}
}

// Register reads the service descriptor and adds an entry under the service name.
// A service registered under an existing name replaces the earlier one; replaced
// reports whether that happened.
func (b *Builder) Register(svc Service) (replaced bool, err error) {
	if svc == nil {
		return false, fmt.Errorf("%w: nil service", ErrInvalidService)
	}
	desc := svc.Descriptor()
	if desc == nil || desc.Name == "" {
		return false, fmt.Errorf("%w: missing service name", ErrInvalidService)
	}

	methods := make(map[string]*MethodDescriptor, len(desc.Methods))
	for _, m := range desc.Methods {
		if m == nil || m.Name == "" {
			return false, fmt.Errorf("%w: %s has an unnamed method", ErrInvalidService, desc.Name)
		}
		if _, dup := methods[m.Name]; dup {
			return false, fmt.Errorf("%w: %s.%s declared twice", ErrInvalidService, desc.Name, m.Name)
		}
		methods[m.Name] = m
	}

	_, replaced = b.entries[desc.Name]
	b.entries[desc.Name] = &Entry{Service: svc, Methods: methods}
	return replaced, nil
}

// Build returns an immutable snapshot of the registered services.
// Later calls to Register do not affect snapshots already built.
func (b *Builder) Build() *Registry {
	entries := make(map[string]*Entry, len(b.entries))
	for name, e := range b.entries {
		methods := make(map[string]*MethodDescriptor, len(e.Methods))
		for k, v := range e.Methods {
			methods[k] = v
		}
		entries[name] = &Entry{Service: e.Service, Methods: methods}
	}
	return &Registry{entries: entries}
}

// Registry maps service and method names to handlers. It has no mutators, so
// concurrent lookups need no locking.
type Registry struct {
	entries map[string]*Entry
}

// Lookup finds the service handle and method descriptor for a call.
func (r *Registry) Lookup(serviceName, methodName string) (Service, *MethodDescriptor, error) {
	e, ok := r.entries[serviceName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceName)
	}
	m, ok := e.Methods[methodName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, serviceName, methodName)
	}
	return e.Service, m, nil
}

// Services returns the registered service names in sorted order.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods returns the method names of a service in sorted order, or nil if the
// service is not registered.
func (r *Registry) Methods(serviceName string) []string {
	e, ok := r.entries[serviceName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(e.Methods))
	for name := range e.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.entries)
}
