package ports

import (
	"context"
	"time"

	"StoryStream/internal/domain"
)

// SourceReader pulls candidate items from the upstream source.
type SourceReader interface {
	Fetch(ctx context.Context) ([]domain.Candidate, error)
}

// RecordStore persists ingested records and answers dedup queries.
type RecordStore interface {
	Ensure(ctx context.Context) error
	LoadKnownIdentities(ctx context.Context) (domain.IdentitySet, error)
	InsertNew(ctx context.Context, records []domain.Record) ([]domain.Record, error)
	QueryRecent(ctx context.Context, window time.Duration) (int, error)
	ListRecent(ctx context.Context) ([]domain.Record, error)
	Close() error
}

// Broadcaster fans delta events out to live subscribers.
type Broadcaster interface {
	Broadcast(event domain.Event)
}

// DeltaSink receives the full delta of a run (Kafka, Telegram, etc.).
type DeltaSink interface {
	Name() string
	PublishDelta(ctx context.Context, delta domain.Delta) error
}

// Ticker controls when pipelines execute.
type Ticker interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
