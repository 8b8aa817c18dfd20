package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"StoryStream/internal/scanner"
)

const newestPage = `
<table>
  <tr class="athing submission" id="101">
    <td class="title"><span class="rank">1.</span></td>
    <td class="title"><span class="titleline"><a href="https://example.org/a">Story A</a><span class="sitebit comhead"> (<a href="from?site=example.org"><span class="sitestr">example.org</span></a>)</span></span></td>
  </tr>
  <tr><td class="subtext">3 points</td></tr>
  <tr class="athing submission" id="102">
    <td class="title"><span class="titleline"><a href="item?id=102">Ask HN: Story B</a></span></td>
  </tr>
  <tr class="athing submission" id="103">
    <td class="title"><span class="titleline"><a href="">  </a></span></td>
  </tr>
</table>
<a href="newest?next=100&amp;n=31" class="morelink" rel="next">More</a>`

func TestParseStory(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(newestPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	base, _ := url.Parse("https://news.ycombinator.com/newest")
	stories := extractStories(doc, base)

	if len(stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(stories))
	}
	if stories[0].Title != "Story A" || stories[0].Link != "https://example.org/a" {
		t.Fatalf("unexpected first story: %+v", stories[0])
	}
	if stories[1].Link != "https://news.ycombinator.com/item?id=102" {
		t.Fatalf("relative link not resolved: %s", stories[1].Link)
	}

	next := nextPageURL(doc, base)
	if next != "https://news.ycombinator.com/newest?next=100&n=31" {
		t.Fatalf("unexpected next page: %s", next)
	}
}

func TestPageCount(t *testing.T) {
	t.Parallel()

	if n, err := pageCount(nil); err != nil || n != 1 {
		t.Fatalf("default page count: %d, %v", n, err)
	}
	if n, err := pageCount(map[string]string{"pages": "50"}); err != nil || n != maxPages {
		t.Fatalf("page count not clamped: %d, %v", n, err)
	}
	if _, err := pageCount(map[string]string{"pages": "zero"}); err == nil {
		t.Fatalf("expected error for invalid pages option")
	}
}

func TestHackerNewsScannerScanFollowsPages(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("next") != "" {
			_, _ = w.Write([]byte(`<table><tr class="athing"><td><span class="titleline"><a href="https://example.org/c">Story C</a></span></td></tr></table>`))
			return
		}
		_, _ = w.Write([]byte(newestPage))
	}))
	defer server.Close()

	sc := NewHackerNewsScanner(server.Client(), nil)
	req := scanner.Request{
		SiteName: "hn",
		URL:      server.URL + "/newest",
		Options:  map[string]string{"pages": "3"},
	}

	stories, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if hits.Load() != 2 {
		t.Fatalf("expected 2 page requests (second page has no morelink), got %d", hits.Load())
	}
	if len(stories) != 3 {
		t.Fatalf("expected 3 stories, got %d", len(stories))
	}
	if stories[2].Title != "Story C" {
		t.Fatalf("page order lost: %+v", stories)
	}
}

func TestHackerNewsScannerRejectsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewHackerNewsScanner(server.Client(), nil)
	_, err := sc.Scan(context.Background(), scanner.Request{SiteName: "hn", URL: server.URL})
	if err == nil {
		t.Fatalf("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), fmt.Sprint(http.StatusServiceUnavailable)) {
		t.Fatalf("status missing from error: %v", err)
	}
}
