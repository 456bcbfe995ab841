package scanner

import (
	"context"

	"TGEMonitor/internal/domain"
)

// Failure records one endpoint (feed URL or search query) that yielded nothing.
type Failure struct {
	Endpoint string
	Err      error
}

// Result is what one source contributes to a cycle. Failed endpoints are
// listed in Failures; RateLimited is set when any endpoint was throttled.
type Result struct {
	Items       []domain.RawItem
	RateLimited bool
	Failures    []Failure
}

// Fail appends a failure for endpoint.
func (r *Result) Fail(endpoint string, err error) {
	r.Failures = append(r.Failures, Failure{Endpoint: endpoint, Err: err})
}

// Scanner captures a single source adapter (feeds, social search).
// Scan isolates per-endpoint failures into the Result; a returned error
// means the source as a whole could not run.
type Scanner interface {
	Name() string
	Kind() domain.SourceKind
	Scan(ctx context.Context) (Result, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
	order    []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	if _, exists := r.scanners[scanner.Name()]; !exists {
		r.order = append(r.order, scanner.Name())
	}
	r.scanners[scanner.Name()] = scanner
}

// All returns the registered scanners in registration order.
func (r *Registry) All() []Scanner {
	out := make([]Scanner, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.scanners[name])
	}
	return out
}
