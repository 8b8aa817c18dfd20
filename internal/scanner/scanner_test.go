package scanner

import (
	"context"
	"testing"

	"StoryStream/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.Candidate, error) {
	return []domain.Candidate{{Title: string(n), Link: "x"}}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("hackernews"))

	sc, err := reg.Resolve("hackernews")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.Name() != "hackernews" {
		t.Fatalf("unexpected scanner %s", sc.Name())
	}

	if _, err := reg.Resolve("feed"); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}
}

func TestRegistryZeroValue(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(namedScanner("feed"))
	if _, err := reg.Resolve("feed"); err != nil {
		t.Fatalf("resolve on zero registry: %v", err)
	}
}
