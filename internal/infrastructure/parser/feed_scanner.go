package parser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"StoryStream/internal/domain"
	"StoryStream/internal/scanner"
)

const limitOption = "limit"

// FeedScanner reads RSS/Atom feeds such as https://hnrss.org/newest.
type FeedScanner struct {
	parser *gofeed.Parser
}

// NewFeedScanner builds a gofeed parser on top of the given client.
func NewFeedScanner(client *http.Client) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "StoryStream/1.0"
	return &FeedScanner{parser: p}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// Scan parses the feed at req.URL and returns its items in feed order.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("site %s: feed url is empty", req.SiteName)
	}

	feed, err := f.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	limit := len(feed.Items)
	if raw := strings.TrimSpace(req.Options[limitOption]); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, item := range feed.Items[:limit] {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{Title: title, Link: link})
	}

	return candidates, nil
}
