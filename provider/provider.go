// Package provider constructs stream transports from configuration.
package provider

import (
	"fmt"
	"sort"

	"github.com/linanwx/surfbot/stream"
)

// Settings carries everything a transport needs at construction time.
type Settings struct {
	APIKey    string
	APIBase   string
	Model     string
	MaxTokens int
}

// Constructor builds a transport for the given settings.
type Constructor func(s Settings) (stream.Transport, error)

// Registration defines metadata and constructor for a transport.
type Registration struct {
	// EnvKey is the conventional API key environment variable.
	EnvKey string
	// DefaultModel is used when settings omit a model.
	DefaultModel string
	Constructor  Constructor
}

var registry = map[string]Registration{}

// Register registers a transport registration under name. Called from
// package init functions.
func Register(name string, reg Registration) {
	registry[name] = reg
}

// New builds the named transport.
func New(name string, s Settings) (stream.Transport, error) {
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("provider: unknown transport %q (supported: %v)", name, Supported())
	}
	if s.Model == "" {
		s.Model = reg.DefaultModel
	}
	return reg.Constructor(s)
}

// Supported returns all registered transport names in sorted order.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvKeyFor returns the conventional API key environment variable for a
// transport, or "".
func EnvKeyFor(name string) string {
	return registry[name].EnvKey
}
