package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"knowledge-server/internal/engine"
	"knowledge-server/internal/graph"
	"knowledge-server/internal/scrape"
)

var (
	scrapeCrawl   bool
	scrapeDomains []string
	scrapeDryRun  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Scrape web pages into the knowledge base",
	Long: `Scrape one or more URLs and add the extracted pages as documents.
With --crawl, links on each page are followed within the allowed
domains up to the configured depth.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeCrawl, "crawl", false, "follow links on scraped pages")
	scrapeCmd.Flags().StringSliceVar(&scrapeDomains, "domain", nil, "restrict scraping to these domains")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "scrape without adding to the knowledge base")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer h.Close(ctx, !scrapeDryRun)

	var pages []scrape.Page
	if scrapeCrawl {
		crawler := scrape.NewCrawler(
			h.cfg.ScrapeMaxDepth,
			scrapeDomains,
			h.cfg.ScrapeDelay,
			h.cfg.ScrapeConcurrent,
		)
		pages, err = crawler.Crawl(args)
		if err != nil {
			return err
		}
	} else {
		fetcher := scrape.NewFetcher(0, scrapeDomains)
		for _, result := range fetcher.FetchAll(ctx, args, h.cfg.ScrapeConcurrent) {
			if result.Error != "" {
				fmt.Printf("skipped %s: %s\n", result.URL, result.Error)
				continue
			}
			pages = append(pages, *result.Page)
		}
	}

	added := 0
	for _, page := range pages {
		fmt.Printf("scraped %s (%s)\n", page.URL, page.Title)
		if scrapeDryRun {
			continue
		}
		doc := graph.Document{
			ID:      fmt.Sprintf("scraped_%d", engine.VectorID(page.URL)),
			Title:   page.Title,
			Content: page.Content,
			URL:     page.URL,
		}
		if err := h.engine.AddDocument(ctx, doc, nil); err != nil {
			fmt.Printf("failed to ingest %s: %v\n", page.URL, err)
			continue
		}
		added++
	}

	fmt.Printf("%d pages scraped, %d added\n", len(pages), added)
	return nil
}
