package scrape

import (
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"knowledge-server/pkg/logger"
)

// Crawler follows links from a set of start URLs up to a depth limit,
// extracting a Page per visited document. Concurrency and politeness are
// bounded by Parallelism and Delay.
type Crawler struct {
	MaxDepth       int
	AllowedDomains []string
	Delay          time.Duration
	Parallelism    int

	logger *zap.Logger
}

// NewCrawler creates a crawler with the given limits
func NewCrawler(maxDepth int, allowedDomains []string, delay time.Duration, parallelism int) *Crawler {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Crawler{
		MaxDepth:       maxDepth,
		AllowedDomains: allowedDomains,
		Delay:          delay,
		Parallelism:    parallelism,
		logger:         logger.Named("crawl"),
	}
}

// Crawl visits the start URLs and follows same-domain links up to MaxDepth.
// Start URLs failing SSRF validation abort the crawl before any request is
// made; errors on followed pages are logged and skipped.
func (c *Crawler) Crawl(startURLs []string) ([]Page, error) {
	for _, rawURL := range startURLs {
		if _, err := ValidateURL(rawURL, c.AllowedDomains); err != nil {
			return nil, err
		}
	}

	opts := []colly.CollectorOption{
		colly.MaxDepth(c.MaxDepth),
		colly.Async(true),
	}
	if len(c.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(c.AllowedDomains...))
	}
	collector := colly.NewCollector(opts...)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.Parallelism,
		Delay:       c.Delay,
	}); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	pages := []Page{}

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.DOM.Find("title").First().Text())
		if title == "" {
			title = strings.TrimSpace(e.DOM.Find("h1").First().Text())
		}
		if title == "" {
			title = "Untitled"
		}

		var paragraphs []string
		e.DOM.Find("p").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})

		mu.Lock()
		pages = append(pages, Page{
			URL:     e.Request.URL.String(),
			Title:   title,
			Content: strings.Join(paragraphs, " "),
		})
		mu.Unlock()
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Followed links go through the same host rules as start URLs
		if _, err := ValidateURL(link, c.AllowedDomains); err != nil {
			return
		}
		_ = e.Request.Visit(link)
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("Crawl request failed",
			zap.String("url", r.Request.URL.String()),
			zap.Error(err),
		)
	})

	for _, rawURL := range startURLs {
		if err := collector.Visit(rawURL); err != nil {
			c.logger.Warn("Failed to visit start URL",
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}
	}

	collector.Wait()
	return pages, nil
}
