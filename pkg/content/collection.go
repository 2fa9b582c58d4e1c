package content

import (
	"context"
	"fmt"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/search"
)

// Collection returns a collection.
func (s *Service) Collection(ctx context.Context, id string) (*Collection, error) {
	col, err := getEntity[Collection](ctx, s.store, KindCollection, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("Collection with id %s not found.", id)
	}
	return col, err
}

// LoadDemoCollection replaces collection id with its demo content, loading
// and publishing every exploration it references.
func (s *Service) LoadDemoCollection(ctx context.Context, committerID, id string) error {
	demo, ok := demoCollections[id]
	if !ok {
		return apperr.InvalidInput("Invalid demo collection id %s", id)
	}
	for _, expID := range demo.explorationIDs {
		if err := s.loadDemoExploration(ctx, committerID, expID); err != nil {
			return fmt.Errorf("loading exploration %s of collection %s: %w", expID, id, err)
		}
	}

	col := Collection{
		ID:             id,
		Title:          demo.title,
		Category:       demo.category,
		Objective:      demo.objective,
		OwnerID:        committerID,
		ExplorationIDs: append([]string(nil), demo.explorationIDs...),
		Version:        1,
		Published:      true,
	}
	if err := putEntity(ctx, s.store, KindCollection, id, col); err != nil {
		return err
	}
	s.index.Add(search.IndexCollections, id, col.Title, col.Category, col.Objective)
	s.logger.Info(fmt.Sprintf("Collection with id %s was loaded.", id), "collection_id", id)
	return nil
}

// ReleaseCollectionOwnership makes a collection community owned.
func (s *Service) ReleaseCollectionOwnership(ctx context.Context, id string) error {
	col, err := s.Collection(ctx, id)
	if err != nil {
		return err
	}
	col.CommunityOwned = true
	return putEntity(ctx, s.store, KindCollection, id, col)
}
