// Package content holds the versioned learning content the admin backend
// seeds and maintains: explorations, collections, topics, skills, blog
// posts and their derived records.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entity kinds.
const (
	KindExploration         = "exploration"
	KindSnapshotContent     = "exploration_snapshot_content"
	KindSnapshotMetadata    = "exploration_snapshot_metadata"
	KindCollection          = "collection"
	KindTopic               = "topic"
	KindTopicSummary        = "topic_summary"
	KindStory               = "story"
	KindSkill               = "skill"
	KindQuestion            = "question"
	KindClassroom           = "classroom"
	KindBlogPost            = "blog_post"
	KindOpportunity         = "exploration_opportunity"
	KindStateAnswers        = "state_answers"
	KindTopicSimilarities   = "topic_similarities"
	topicSimilaritiesDocKey = "default"
)

// Document is a stored JSON entity.
type Document struct {
	Kind      string
	ID        string
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists JSON documents keyed by kind and id.
type Store interface {
	// Put inserts or replaces a document. Replacing keeps CreatedAt.
	Put(ctx context.Context, kind, id string, body []byte) error

	// Get returns a document or an apperr.NotFound error.
	Get(ctx context.Context, kind, id string) (*Document, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, kind, id string) error

	// List returns every document of a kind, oldest first.
	List(ctx context.Context, kind string) ([]Document, error)
}

func getEntity[T any](ctx context.Context, s Store, kind, id string) (*T, error) {
	doc, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(doc.Body, &v); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", kind, id, err)
	}
	return &v, nil
}

func putEntity(ctx context.Context, s Store, kind, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", kind, id, err)
	}
	if err := s.Put(ctx, kind, id, body); err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	return nil
}

func listEntities[T any](ctx context.Context, s Store, kind string) ([]T, error) {
	docs, err := s.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Body, &v); err != nil {
			return nil, fmt.Errorf("decoding %s %s: %w", kind, doc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
