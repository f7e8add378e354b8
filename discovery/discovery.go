// Package discovery is the session to the naming service that maps
// "/ServiceName/MethodName" paths to "ip:port" values.
//
// Providers create a persistent "/ServiceName" node and an ephemeral
// "/ServiceName/MethodName" node per method at startup. Ephemeral nodes belong to
// the session that created them and disappear when it ends, so a crashed provider
// stops being advertised without anyone deregistering it.
package discovery

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrConnect      = errors.New("discovery: connect")
	ErrWrite        = errors.New("discovery: write")
	ErrLookup       = errors.New("discovery: lookup")
	ErrNotConnected = errors.New("discovery: not connected")
)

// Client is a long-lived session to the naming service. Implementations are safe
// for concurrent use once Connect has returned.
type Client interface {
	// Connect establishes the session.
	Connect(ctx context.Context) error

	// CreatePath makes sure a node exists at path. An ephemeral node takes value and
	// lives as long as the session; an existing persistent node is left untouched.
	CreatePath(ctx context.Context, path string, value []byte, ephemeral bool) error

	// Lookup reads the current value at path. A missing node or an empty value is
	// reported with found == false and a nil error. Results are never cached.
	Lookup(ctx context.Context, path string) (value string, found bool, err error)

	// Delete removes the node at path if it exists.
	Delete(ctx context.Context, path string) error

	// Close ends the session, dropping its ephemeral nodes.
	Close() error
}

// ServicePath returns "/service".
func ServicePath(service string) string {
	return "/" + service
}

// MethodPath returns "/service/method".
func MethodPath(service, method string) string {
	return "/" + service + "/" + method
}

func validPath(path string) bool {
	return strings.HasPrefix(path, "/") && len(path) > 1
}
