package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/clock"

	"StoryStream/internal/domain"
	"StoryStream/internal/logging"
	"StoryStream/internal/metrics"
	"StoryStream/internal/ports"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source       ports.SourceReader
	Store        ports.RecordStore
	Broadcaster  ports.Broadcaster
	Sinks        []ports.DeltaSink
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	PayloadLimit int
	StoreTimeout time.Duration
	SinkTimeout  time.Duration
}

// Pipeline implements one fetch, dedup, insert and broadcast pass.
type Pipeline struct {
	source       ports.SourceReader
	store        ports.RecordStore
	broadcaster  ports.Broadcaster
	sinks        []ports.DeltaSink
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	payloadLimit int
	storeTimeout time.Duration
	sinkTimeout  time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Pipeline{
		source:       deps.Source,
		store:        deps.Store,
		broadcaster:  deps.Broadcaster,
		sinks:        deps.Sinks,
		clock:        clk,
		logger:       logging.OrDiscard(deps.Logger),
		metrics:      deps.Metrics,
		payloadLimit: deps.PayloadLimit,
		storeTimeout: deps.StoreTimeout,
		sinkTimeout:  deps.SinkTimeout,
	}
}

// Run executes a single ingestion pass. Callers must not run it concurrently
// against the same store; the Scheduler enforces that.
func (p *Pipeline) Run(ctx context.Context) (domain.RunResult, error) {
	var result domain.RunResult
	if p.source == nil || p.store == nil {
		return result, errors.New("pipeline is missing a source or store")
	}
	start := p.clock.Now()

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		p.metrics.RunFinished(metrics.OutcomeFetchError, 0, p.clock.Now().Sub(start))
		return result, ensureKind(domain.ErrFetch, "fetch candidates", err)
	}
	result.Candidates = len(candidates)

	loadCtx, cancel := withTimeout(ctx, p.storeTimeout)
	known, err := p.store.LoadKnownIdentities(loadCtx)
	cancel()
	if err != nil {
		p.metrics.RunFinished(metrics.OutcomeStorageError, 0, p.clock.Now().Sub(start))
		return result, ensureKind(domain.ErrStorage, "load known identities", err)
	}

	fresh := selectNew(candidates, known)
	if len(fresh) == 0 {
		p.logger.Debug("no new records", "candidates", len(candidates))
		p.metrics.RunFinished(metrics.OutcomeNoChange, 0, p.clock.Now().Sub(start))
		return result, nil
	}

	createdAt := p.clock.Now().UTC()
	records := make([]domain.Record, len(fresh))
	for i, c := range fresh {
		records[i] = domain.Record{Title: c.Title, Link: c.Link, CreatedAt: createdAt}
	}

	insertCtx, cancel := withTimeout(ctx, p.storeTimeout)
	inserted, err := p.store.InsertNew(insertCtx, records)
	cancel()
	if err != nil {
		p.metrics.RunFinished(metrics.OutcomeStorageError, 0, p.clock.Now().Sub(start))
		return result, ensureKind(domain.ErrStorage, "insert new records", err)
	}
	result.Inserted = len(inserted)

	delta := domain.Delta{Records: inserted}
	if p.broadcaster != nil && delta.Total() > 0 {
		p.broadcaster.Broadcast(domain.NewRecordsEvent(delta, p.payloadLimit))
		result.Broadcast = true
	}
	p.publish(ctx, delta)

	p.logger.Info("ingestion run finished",
		"candidates", result.Candidates,
		"inserted", result.Inserted,
	)
	p.metrics.RunFinished(metrics.OutcomeInserted, result.Inserted, p.clock.Now().Sub(start))
	return result, nil
}

func (p *Pipeline) publish(ctx context.Context, delta domain.Delta) {
	for _, sink := range p.sinks {
		sinkCtx, cancel := withTimeout(ctx, p.sinkTimeout)
		err := sink.PublishDelta(sinkCtx, delta)
		cancel()
		if err != nil {
			p.logger.Warn("delta sink failed", "sink", sink.Name(), "error", err)
			p.metrics.SinkFailed(sink.Name())
		}
	}
}

// selectNew keeps candidates absent from known, in source order. Invalid
// UTF-8 is replaced with U+FFFD before the identity is taken so stored and
// fetched identities compare equal. Blank candidates and repeats within the
// batch are dropped; the first occurrence wins.
func selectNew(candidates []domain.Candidate, known domain.IdentitySet) []domain.Candidate {
	seen := domain.IdentitySet{}
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Title = strings.ToValidUTF8(c.Title, "\uFFFD")
		c.Link = strings.ToValidUTF8(c.Link, "\uFFFD")
		if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Link) == "" {
			continue
		}
		id := c.Identity()
		if known.Has(id) || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, c)
	}
	return out
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func ensureKind(kind error, op string, err error) error {
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
