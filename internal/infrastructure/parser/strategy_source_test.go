package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/scanner"
)

type stubScanner struct {
	name  string
	items []domain.Candidate
	err   error
	block bool
}

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(ctx context.Context, _ scanner.Request) ([]domain.Candidate, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.items, s.err
}

func TestStrategySourceFetch(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(stubScanner{name: "stub", items: []domain.Candidate{{Title: "A", Link: "x"}}})

	src := NewStrategySource(reg, config.SourceConfig{Name: "s", Scanner: "stub"}, nil)
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0].Title != "A" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestStrategySourceWrapsErrorsAsFetchError(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(stubScanner{name: "broken", err: errors.New("boom")})

	_, err := NewStrategySource(reg, config.SourceConfig{Name: "s", Scanner: "broken"}, nil).Fetch(context.Background())
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}

	_, err = NewStrategySource(reg, config.SourceConfig{Name: "s", Scanner: "missing"}, nil).Fetch(context.Background())
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch for unknown scanner, got %v", err)
	}
}

func TestStrategySourceAppliesTimeout(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(stubScanner{name: "hung", block: true})

	src := NewStrategySource(reg, config.SourceConfig{Name: "s", Scanner: "hung", Timeout: 20 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := src.Fetch(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrFetch) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected fetch deadline error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("hung scanner was not bounded by the source timeout")
	}
}
