package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"knowledge-server/pkg/logger"
)

// Store handles all knowledge-graph operations against Neo4j.
//
// Schema: Document(id PK, title, content, url) and Entity(id PK, name,
// entity_type, description) nodes, MENTIONS(Document->Entity) and
// RELATED_TO(Entity->Entity, relation_type) relationships.
type Store struct {
	driver    neo4j.DriverWithContext
	logger    *zap.Logger
	closeOnce sync.Once
}

// NewStore creates a graph store and bootstraps the schema. Bootstrap uses
// IF NOT EXISTS constraints so it is a no-op on an already initialized
// database; only the "already exists" condition is tolerated, any other
// schema failure propagates.
func NewStore(ctx context.Context, driver neo4j.DriverWithContext) (*Store, error) {
	s := &Store{
		driver: driver,
		logger: logger.Named("graph"),
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	constraints := []string{
		`CREATE CONSTRAINT document_id IF NOT EXISTS
		 FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_id IF NOT EXISTS
		 FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
	}

	for _, stmt := range constraints {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	s.logger.Debug("Graph schema initialized")
	return nil
}

// isAlreadyExists recognizes Neo4j's equivalent-schema errors. IF NOT EXISTS
// already covers the common case; this catches servers that still report a
// conflict for a constraint created under a different name.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "EquivalentSchemaRuleAlreadyExists")
}

// Close closes the Neo4j driver connection. Safe to call multiple times.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.driver.Close(context.Background())
	})
	return err
}

// AddDocument upserts a document by id. Re-adding the same id overwrites
// title, content and url.
func (s *Store) AddDocument(ctx context.Context, doc Document) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (d:Document {id: $id})
		SET d.title = $title, d.content = $content, d.url = $url
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"id":      doc.ID,
		"title":   doc.Title,
		"content": doc.Content,
		"url":     doc.URL,
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	s.logger.Debug("Document upserted", zap.String("doc_id", doc.ID))
	return nil
}

// AddEntity upserts an entity by id
func (s *Store) AddEntity(ctx context.Context, entity Entity) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (e:Entity {id: $id})
		SET e.name = $name, e.entity_type = $entity_type, e.description = $description
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"id":          entity.ID,
		"name":        entity.Name,
		"entity_type": entity.EntityType,
		"description": entity.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to add entity: %w", err)
	}

	s.logger.Debug("Entity upserted", zap.String("entity_id", entity.ID))
	return nil
}

// LinkDocumentEntity creates a MENTIONS edge between a document and an
// entity. Idempotent: a second call for the same pair is a no-op. Linking is
// permissive, not validating - if either endpoint does not exist the MATCH
// binds nothing and the call is silently a no-op.
func (s *Store) LinkDocumentEntity(ctx context.Context, docID, entityID string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {id: $doc_id}), (e:Entity {id: $entity_id})
		MERGE (d)-[:MENTIONS]->(e)
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"doc_id":    docID,
		"entity_id": entityID,
	})
	if err != nil {
		return fmt.Errorf("failed to link document to entity: %w", err)
	}

	return nil
}

// LinkEntities creates a RELATED_TO edge between two entities. Uniqueness is
// keyed on the (source, target) pair only: relation_type is set when the edge
// is first created, and a later call with a different relation_type for the
// same pair is a no-op, not an update.
func (s *Store) LinkEntities(ctx context.Context, sourceID, targetID, relationType string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (s:Entity {id: $source_id}), (t:Entity {id: $target_id})
		MERGE (s)-[r:RELATED_TO]->(t)
		ON CREATE SET r.relation_type = $relation_type
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"source_id":     sourceID,
		"target_id":     targetID,
		"relation_type": relationType,
	})
	if err != nil {
		return fmt.Errorf("failed to link entities: %w", err)
	}

	return nil
}

// GetDocument returns a document by id, or nil if it does not exist.
// "Not found" is a normal outcome, not an error.
func (s *Store) GetDocument(ctx context.Context, docID string) (*Document, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {id: $id})
		RETURN d.id as id, d.title as title, d.content as content, d.url as url
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": docID})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, nil
	}

	record := result.Record()
	return &Document{
		ID:      getString(record, "id", ""),
		Title:   getString(record, "title", ""),
		Content: getString(record, "content", ""),
		URL:     getString(record, "url", ""),
	}, nil
}

// GetEntity returns an entity by id, or nil if it does not exist
func (s *Store) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {id: $id})
		RETURN e.id as id, e.name as name, e.entity_type as entity_type, e.description as description
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": entityID})
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, nil
	}

	entity := entityFromRecord(result.Record())
	return &entity, nil
}

// GetDocumentEntities returns all entities mentioned by a document
// (one hop along MENTIONS).
func (s *Store) GetDocumentEntities(ctx context.Context, docID string) ([]Entity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {id: $id})-[:MENTIONS]->(e:Entity)
		RETURN e.id as id, e.name as name, e.entity_type as entity_type, e.description as description
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": docID})
	if err != nil {
		return nil, fmt.Errorf("failed to get document entities: %w", err)
	}

	entities := []Entity{}
	for result.Next(ctx) {
		entities = append(entities, entityFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	return entities, nil
}

// GetRelatedEntities returns entities one hop along RELATED_TO from the given
// entity, optionally filtered by relation type. Pass an empty relationType
// for no filter.
func (s *Store) GetRelatedEntities(ctx context.Context, entityID, relationType string) ([]RelatedEntity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (s:Entity {id: $id})-[r:RELATED_TO]->(t:Entity)
		WHERE $relation_type = '' OR r.relation_type = $relation_type
		RETURN t.id as id, t.name as name, t.entity_type as entity_type,
		       t.description as description, r.relation_type as relation_type
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":            entityID,
		"relation_type": relationType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get related entities: %w", err)
	}

	related := []RelatedEntity{}
	for result.Next(ctx) {
		record := result.Record()
		related = append(related, RelatedEntity{
			Entity:       entityFromRecord(record),
			RelationType: getString(record, "relation_type", ""),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	return related, nil
}

// SearchEntities returns entities whose name contains the given pattern, with
// an optional exact filter on entity type. Results carry no ordering
// guarantee.
func (s *Store) SearchEntities(ctx context.Context, namePattern, entityType string) ([]Entity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity)
		WHERE e.name CONTAINS $pattern
		  AND ($type = '' OR e.entity_type = $type)
		RETURN e.id as id, e.name as name, e.entity_type as entity_type, e.description as description
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"pattern": namePattern,
		"type":    entityType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}

	entities := []Entity{}
	for result.Next(ctx) {
		entities = append(entities, entityFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	return entities, nil
}

// Helper functions

func entityFromRecord(record *neo4j.Record) Entity {
	return Entity{
		ID:          getString(record, "id", ""),
		Name:        getString(record, "name", ""),
		EntityType:  getString(record, "entity_type", ""),
		Description: getString(record, "description", ""),
	}
}

func getString(record *neo4j.Record, key string, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}
