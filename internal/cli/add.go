package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"knowledge-server/internal/graph"
)

var (
	addID       string
	addTitle    string
	addURL      string
	addFile     string
	addEntities []string
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a document to the knowledge base",
	Long: `Add a document to the knowledge base. Content comes from the argument
or from --file. Entities are given as name:type pairs, e.g.

  knowledge add "Lions are large cats." --title "Lions" --entity lion:Animal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "document id (generated when omitted)")
	addCmd.Flags().StringVar(&addTitle, "title", "", "document title")
	addCmd.Flags().StringVar(&addURL, "url", "", "source URL")
	addCmd.Flags().StringVar(&addFile, "file", "", "read content from file instead of the argument")
	addCmd.Flags().StringArrayVar(&addEntities, "entity", nil, "entity as name:type (repeatable)")
	addCmd.MarkFlagRequired("title")
}

func runAdd(cmd *cobra.Command, args []string) error {
	var content string
	switch {
	case addFile != "":
		data, err := os.ReadFile(addFile)
		if err != nil {
			return fmt.Errorf("failed to read content file: %w", err)
		}
		content = string(data)
	case len(args) == 1:
		content = args[0]
	default:
		return fmt.Errorf("content argument or --file is required")
	}

	entities, err := parseEntities(addEntities)
	if err != nil {
		return err
	}

	docID := addID
	if docID == "" {
		docID = uuid.NewString()
	}

	ctx := cmd.Context()
	h, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer h.Close(ctx, true)

	doc := graph.Document{ID: docID, Title: addTitle, Content: content, URL: addURL}
	if err := h.engine.AddDocument(ctx, doc, entities); err != nil {
		return err
	}

	fmt.Printf("Added document %s\n", docID)
	return nil
}

// parseEntities turns name:type flags into entities keyed by a
// lowercased form of the name
func parseEntities(specs []string) ([]graph.Entity, error) {
	entities := make([]graph.Entity, 0, len(specs))
	for _, spec := range specs {
		name, entityType, _ := strings.Cut(spec, ":")
		if name == "" {
			return nil, fmt.Errorf("invalid entity %q, expected name:type", spec)
		}
		entities = append(entities, graph.Entity{
			ID:         strings.ToLower(strings.ReplaceAll(name, " ", "_")),
			Name:       name,
			EntityType: entityType,
		})
	}
	return entities, nil
}
