package storage

import (
	"context"
	"errors"
	"testing"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
)

func TestOpenMemoryBackend(t *testing.T) {
	t.Parallel()

	store, err := Open(context.Background(), config.Config{Database: config.DatabaseConfig{Backend: config.BackendMemory}}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := store.(*MemoryRepository); !ok {
		t.Fatalf("unexpected store type %T", store)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), config.Config{Database: config.DatabaseConfig{Backend: "sqlite"}}, nil)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
