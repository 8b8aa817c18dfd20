package usecase

import (
	"context"
	"time"

	"StoryStream/internal/ports"
)

// ActivityCounter reports how many records arrived within a fixed window.
type ActivityCounter struct {
	store  ports.RecordStore
	window time.Duration
}

// NewActivityCounter binds the counter to a store and window.
func NewActivityCounter(store ports.RecordStore, window time.Duration) *ActivityCounter {
	return &ActivityCounter{store: store, window: window}
}

// Count returns the number of records created within the window.
func (a *ActivityCounter) Count(ctx context.Context) (int, error) {
	return a.store.QueryRecent(ctx, a.window)
}
