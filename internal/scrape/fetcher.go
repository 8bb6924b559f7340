package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knowledge-server/pkg/logger"
)

// maxLinks caps the number of outgoing links recorded per page
const maxLinks = 20

// Page is the extracted content of a single scraped page
type Page struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Headings []string `json:"headings,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// Result pairs a requested URL with its page or its error. Batch fetches
// collect per-URL errors instead of failing the whole batch.
type Result struct {
	URL   string `json:"url"`
	Page  *Page  `json:"page,omitempty"`
	Error string `json:"error,omitempty"`
}

// Fetcher retrieves and extracts single pages. URLs are validated against
// the SSRF rules in ValidateURL before any request is made.
type Fetcher struct {
	client         *http.Client
	allowedDomains []string
	logger         *zap.Logger
}

// NewFetcher creates a fetcher. allowedDomains restricts fetches to those
// domains when non-empty.
func NewFetcher(timeout time.Duration, allowedDomains []string) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:         &http.Client{Timeout: timeout},
		allowedDomains: allowedDomains,
		logger:         logger.Named("scrape"),
	}
}

// Fetch validates, retrieves and extracts one page
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	validated, err := ValidateURL(rawURL, f.allowedDomains)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validated, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", validated, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", validated, resp.StatusCode)
	}

	return extractPage(validated, resp.Body)
}

// FetchAll fetches a batch of URLs with bounded concurrency. Per-URL failures
// are recorded on their Result; the batch itself only fails on context
// cancellation.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Result, len(urls))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, rawURL := range urls {
		g.Go(func() error {
			page, err := f.Fetch(ctx, rawURL)
			mu.Lock()
			defer mu.Unlock()
			results[i] = Result{URL: rawURL, Page: page}
			if err != nil {
				results[i].Error = err.Error()
				f.logger.Warn("Fetch failed", zap.String("url", rawURL), zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// extractPage pulls title, paragraph text and headings out of an HTML
// document. Title falls back to the first h1, then "Untitled"; content is
// the page's paragraph text joined with spaces.
func extractPage(pageURL string, body io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "Untitled"
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	var headings []string
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})

	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
		return len(links) < maxLinks
	})

	return &Page{
		URL:      pageURL,
		Title:    title,
		Content:  strings.Join(paragraphs, " "),
		Headings: headings,
		Links:    links,
	}, nil
}
