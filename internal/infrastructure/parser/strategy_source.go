package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
	"StoryStream/internal/scanner"
)

// StrategySource implements ports.SourceReader via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	site     config.SourceConfig
	logger   *slog.Logger
}

var _ ports.SourceReader = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured source.
func NewStrategySource(reg *scanner.Registry, site config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		site:     site,
		logger:   log,
	}
}

// Fetch runs the configured scanner under the source timeout. Every failure
// is reported as domain.ErrFetch.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: scanner registry is not configured", domain.ErrFetch)
	}

	strategy, err := s.registry.Resolve(s.site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("%w: site %s: %w", domain.ErrFetch, s.site.Name, err)
	}

	if s.site.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.site.Timeout)
		defer cancel()
	}

	started := time.Now()
	s.debug("fetch source", "site", s.site.Name, "scanner", s.site.Scanner, "url", s.site.URL)

	results, err := strategy.Scan(ctx, scanner.Request{
		SiteName: s.site.Name,
		URL:      s.site.URL,
		Options:  s.site.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan site %s: %w", domain.ErrFetch, s.site.Name, err)
	}

	s.debug("source produced candidates", "site", s.site.Name, "count", len(results), "elapsed", time.Since(started))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
