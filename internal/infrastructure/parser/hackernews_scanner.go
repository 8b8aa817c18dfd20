package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"StoryStream/internal/domain"
	"StoryStream/internal/logging"
	"StoryStream/internal/scanner"
)

const (
	hackerNewsNewestURL = "https://news.ycombinator.com/newest"
	pagesOption         = "pages"
	maxPages            = 10
)

// HackerNewsScanner scrapes story rows from Hacker News listing pages.
type HackerNewsScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewHackerNewsScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewHackerNewsScanner(client *http.Client, logger *slog.Logger) *HackerNewsScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HackerNewsScanner{client: client, logger: logging.OrDiscard(logger)}
}

// Name identifies the strategy inside the registry.
func (h *HackerNewsScanner) Name() string {
	return "hackernews"
}

// Scan reads the listing page and, when the "pages" option asks for it,
// follows the "More" link. Candidates keep page order.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	pageURL := req.URL
	if pageURL == "" {
		pageURL = hackerNewsNewestURL
	}

	pages, err := pageCount(req.Options)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", req.SiteName, err)
	}

	var results []domain.Candidate
	for page := 0; page < pages && pageURL != ""; page++ {
		doc, err := h.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("site %s page %d: %w", req.SiteName, page+1, err)
		}

		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
		}

		pageItems := extractStories(doc, base)
		h.logger.Debug("page scanned", "site", req.SiteName, "page", page+1, "stories", len(pageItems))
		results = append(results, pageItems...)

		pageURL = nextPageURL(doc, base)
	}

	return results, nil
}

func (h *HackerNewsScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "StoryStream/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hacker news returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractStories(doc *goquery.Document, base *url.URL) []domain.Candidate {
	var collected []domain.Candidate

	doc.Find(".athing").Each(func(_ int, row *goquery.Selection) {
		candidate, ok := parseStory(row, base)
		if ok {
			collected = append(collected, candidate)
		}
	})

	return collected
}

func parseStory(row *goquery.Selection, base *url.URL) (domain.Candidate, bool) {
	anchor := row.Find(".titleline > a").First()
	if anchor.Length() == 0 {
		anchor = row.Find(".titleline a").First()
	}

	title := strings.TrimSpace(anchor.Text())
	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return domain.Candidate{}, false
	}

	return domain.Candidate{Title: title, Link: resolveLink(base, href)}, true
}

// resolveLink turns "item?id=1" style links into absolute URLs; absolute links pass through.
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func nextPageURL(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find("a.morelink").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return resolveLink(base, href)
}

func pageCount(options map[string]string) (int, error) {
	raw, ok := options[pagesOption]
	if !ok || strings.TrimSpace(raw) == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s option %q", pagesOption, raw)
	}
	if n > maxPages {
		n = maxPages
	}
	return n, nil
}
