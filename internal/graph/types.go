package graph

// Document is a stored document's graph metadata. Its embedding lives in the
// vector index under a derived integer key, not here.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// Entity is a node in the knowledge graph
type Entity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EntityType  string `json:"entity_type"`
	Description string `json:"description,omitempty"`
}

// RelatedEntity is an entity reached over a RELATED_TO edge, together with
// the edge's relation type.
type RelatedEntity struct {
	Entity       Entity `json:"entity"`
	RelationType string `json:"relation_type"`
}
