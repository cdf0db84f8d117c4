// Package provider defines the upstream bridge provider interface and the
// catalog of configured providers the aggregator fans out to.
package provider

import (
	"context"
	"strings"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

// Provider is one upstream bridge quote source. Implementations must honor
// context cancellation; the aggregator enforces per-provider deadlines.
type Provider interface {
	Name() string
	// SupportsRoute reports whether the provider bridges between the two
	// chains. Chain names are compared case-insensitively.
	SupportsRoute(sourceChain, destinationChain string) bool
	Quote(ctx context.Context, req *quote.Request) (*quote.Quote, error)
}

// Route is one supported chain pair.
type Route struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Matches reports whether the route covers the given chain pair.
func (r Route) Matches(sourceChain, destinationChain string) bool {
	return strings.EqualFold(r.Source, sourceChain) &&
		strings.EqualFold(r.Destination, destinationChain)
}
