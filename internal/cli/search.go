package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"knowledge-server/internal/engine"
)

var (
	searchTopK    int
	searchGraph   bool
	searchEntity  string
	searchRerank  bool
	searchAsJSON  bool
	contextTopK   int
	contextTokens int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble a token-budgeted context string for a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "number of results")
	searchCmd.Flags().BoolVar(&searchGraph, "graph", true, "include graph context in results")
	searchCmd.Flags().StringVar(&searchEntity, "entity", "", "also search the graph for this entity name")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "rerank results with the cross-encoder")
	searchCmd.Flags().BoolVar(&searchAsJSON, "json", false, "print raw JSON")

	contextCmd.Flags().IntVar(&contextTopK, "top-k", 3, "number of documents to draw from")
	contextCmd.Flags().IntVar(&contextTokens, "max-tokens", 2000, "approximate token budget")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer h.Close(ctx, false)

	if searchEntity != "" {
		combined, err := h.engine.RetrieveWithGraph(ctx, args[0], searchEntity, searchTopK)
		if err != nil {
			return err
		}
		return printJSON(combined)
	}

	var useReranker *bool
	if cmd.Flags().Changed("rerank") {
		useReranker = &searchRerank
	}

	results, err := h.engine.Retrieve(ctx, args[0], engine.RetrieveOptions{
		TopK:                searchTopK,
		IncludeGraphContext: searchGraph,
		UseReranker:         useReranker,
	})
	if err != nil {
		return err
	}

	if searchAsJSON {
		return printJSON(results)
	}

	for i, r := range results {
		content := ""
		if r.Content != nil {
			content = *r.Content
		}
		fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, content)
		for _, e := range r.Entities {
			fmt.Printf("   - %s (%s)\n", e.Name, e.EntityType)
		}
	}
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer h.Close(ctx, false)

	text, err := h.engine.GetContext(ctx, args[0], contextTopK, contextTokens)
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
