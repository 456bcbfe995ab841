package scanner

import (
	"context"
	"errors"
	"testing"

	"TGEMonitor/internal/domain"
)

type stubScanner struct {
	name string
	kind domain.SourceKind
}

func (s stubScanner) Name() string                         { return s.name }
func (s stubScanner) Kind() domain.SourceKind              { return s.kind }
func (s stubScanner) Scan(context.Context) (Result, error) { return Result{}, nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubScanner{name: "social", kind: domain.SourceSocial})
	r.Register(stubScanner{name: "feeds", kind: domain.SourceFeed})
	r.Register(stubScanner{name: "social", kind: domain.SourceSocial})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 scanners, got %d", len(all))
	}
	if all[0].Name() != "social" || all[1].Name() != "feeds" {
		t.Fatalf("unexpected order: %s, %s", all[0].Name(), all[1].Name())
	}
}

func TestResultFail(t *testing.T) {
	t.Parallel()

	var res Result
	res.Fail("https://a", errors.New("boom"))
	if len(res.Failures) != 1 || res.Failures[0].Endpoint != "https://a" {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
}
