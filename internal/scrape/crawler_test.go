package scrape

import (
	"testing"
	"time"
)

func TestNewCrawler_Defaults(t *testing.T) {
	c := NewCrawler(0, nil, time.Second, 0)
	if c.MaxDepth != 2 {
		t.Errorf("Expected default depth 2, got %d", c.MaxDepth)
	}
	if c.Parallelism != 4 {
		t.Errorf("Expected default parallelism 4, got %d", c.Parallelism)
	}
}

func TestCrawl_RejectsBadStartURLs(t *testing.T) {
	c := NewCrawler(2, nil, 0, 1)

	if _, err := c.Crawl([]string{"http://169.254.169.254/latest/meta-data/"}); err == nil {
		t.Error("Expected metadata endpoint to be rejected")
	}
	if _, err := c.Crawl([]string{"https://example.com/", "ftp://example.com/x"}); err == nil {
		t.Error("Expected any invalid start URL to abort the crawl")
	}

	restricted := NewCrawler(2, []string{"example.com"}, 0, 1)
	if _, err := restricted.Crawl([]string{"https://other.org/"}); err == nil {
		t.Error("Expected out-of-domain start URL to be rejected")
	}
}
