package content

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/search"
)

// Commit types recorded in snapshot metadata.
const (
	CommitTypeCreate = "create"
	CommitTypeEdit   = "edit"
	CommitTypeRevert = "revert"
)

var (
	dummyExplorationTitles = []string{
		"Solar System", "Fractions", "Photosynthesis", "Binary Numbers", "Roman History",
		"Simple Machines", "Poetry Basics", "Cell Division", "Probability", "Map Reading",
	}
	dummyExplorationCategories = []string{"Astronomy", "Mathematics", "Biology", "Computing", "History"}
)

// Exploration returns the current version of an exploration.
func (s *Service) Exploration(ctx context.Context, id string) (*Exploration, error) {
	exp, err := getEntity[Exploration](ctx, s.store, KindExploration, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("Exploration with id %s not found.", id)
	}
	return exp, err
}

// Explorations returns every exploration.
func (s *Service) Explorations(ctx context.Context) ([]Exploration, error) {
	return listEntities[Exploration](ctx, s.store, KindExploration)
}

func (s *Service) commit(ctx context.Context, committerID string, exp *Exploration, commitType, message string) error {
	if err := putEntity(ctx, s.store, KindExploration, exp.ID, exp); err != nil {
		return err
	}
	snapID := SnapshotID(exp.ID, exp.Version)
	if err := putEntity(ctx, s.store, KindSnapshotContent, snapID, SnapshotContent{ID: snapID, Exploration: *exp}); err != nil {
		return err
	}
	meta := SnapshotMetadata{
		ID:            snapID,
		CommitterID:   committerID,
		CommitType:    commitType,
		CommitMessage: message,
		CreatedAt:     s.now().UTC(),
	}
	return putEntity(ctx, s.store, KindSnapshotMetadata, snapID, meta)
}

// SaveExploration stores a new exploration at version 1.
func (s *Service) SaveExploration(ctx context.Context, committerID string, exp Exploration) (*Exploration, error) {
	if exp.ID == "" {
		exp.ID = newEntityID()
	}
	if exp.InitStateName == "" {
		exp.InitStateName = DefaultInitStateName
	}
	if _, ok := exp.States[exp.InitStateName]; !ok {
		return nil, apperr.InvalidInput("Exploration %s has no initial state %s.", exp.ID, exp.InitStateName)
	}
	if exp.LanguageCode == "" {
		exp.LanguageCode = "en"
	}
	if _, err := s.store.Get(ctx, KindExploration, exp.ID); err == nil {
		return nil, apperr.InvalidInput("Exploration with id %s already exists.", exp.ID)
	} else if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("checking exploration %s: %w", exp.ID, err)
	}

	exp.OwnerID = lo.Ternary(exp.OwnerID == "", committerID, exp.OwnerID)
	exp.Version = 1
	exp.Published = false
	if err := s.commit(ctx, committerID, &exp, CommitTypeCreate, "New exploration created."); err != nil {
		return nil, err
	}
	return &exp, nil
}

// UpdateExploration applies fn to the current exploration and commits the
// result as a new version.
func (s *Service) UpdateExploration(ctx context.Context, committerID, id, message string, fn func(*Exploration) error) (*Exploration, error) {
	exp, err := s.Exploration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(exp); err != nil {
		return nil, err
	}
	if _, ok := exp.States[exp.InitStateName]; !ok {
		return nil, apperr.InvalidInput("Exploration %s has no initial state %s.", exp.ID, exp.InitStateName)
	}
	exp.ID = id
	exp.Version++
	if err := s.commit(ctx, committerID, exp, CommitTypeEdit, message); err != nil {
		return nil, err
	}
	return exp, nil
}

// PublishExploration marks an exploration public and indexes it.
func (s *Service) PublishExploration(ctx context.Context, id string) error {
	exp, err := s.Exploration(ctx, id)
	if err != nil {
		return err
	}
	exp.Published = true
	if err := putEntity(ctx, s.store, KindExploration, id, exp); err != nil {
		return err
	}
	s.index.Add(search.IndexExplorations, id, exp.Title, exp.Category, exp.Objective)
	return nil
}

func (s *Service) deleteExploration(ctx context.Context, id string) error {
	exp, err := getEntity[Exploration](ctx, s.store, KindExploration, id)
	if apperr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for v := 1; v <= exp.Version; v++ {
		if err := s.deleteSnapshot(ctx, id, v); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, KindExploration, id); err != nil {
		return fmt.Errorf("deleting exploration %s: %w", id, err)
	}
	s.index.Remove(search.IndexExplorations, id)
	return nil
}

func (s *Service) deleteSnapshot(ctx context.Context, id string, version int) error {
	snapID := SnapshotID(id, version)
	if err := s.store.Delete(ctx, KindSnapshotContent, snapID); err != nil {
		return fmt.Errorf("deleting snapshot content %s: %w", snapID, err)
	}
	if err := s.store.Delete(ctx, KindSnapshotMetadata, snapID); err != nil {
		return fmt.Errorf("deleting snapshot metadata %s: %w", snapID, err)
	}
	return nil
}

// DeleteSnapshotContent removes the content snapshot of one version.
func (s *Service) DeleteSnapshotContent(ctx context.Context, id string, version int) error {
	return s.store.Delete(ctx, KindSnapshotContent, SnapshotID(id, version))
}

// DeleteSnapshotMetadata removes the metadata snapshot of one version.
func (s *Service) DeleteSnapshotMetadata(ctx context.Context, id string, version int) error {
	return s.store.Delete(ctx, KindSnapshotMetadata, SnapshotID(id, version))
}

func (s *Service) loadDemoExploration(ctx context.Context, committerID, id string) error {
	demo, ok := demoExplorations[id]
	if !ok {
		return apperr.InvalidInput("Invalid demo exploration id %s", id)
	}
	if err := s.deleteExploration(ctx, id); err != nil {
		return err
	}
	if _, err := s.SaveExploration(ctx, committerID, demo.build(id, committerID)); err != nil {
		return err
	}
	if err := s.PublishExploration(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("demo exploration loaded", "exploration_id", id)
	return nil
}

// LoadDemoExploration replaces exploration id with its demo content and
// publishes it.
func (s *Service) LoadDemoExploration(ctx context.Context, committerID, id string) error {
	if err := s.loadDemoExploration(ctx, committerID, id); err != nil {
		return err
	}
	s.logger.Info(fmt.Sprintf("Exploration with id %s was loaded.", id), "exploration_id", id)
	return nil
}

// GenerateDummyExplorations creates numGenerate explorations and publishes
// the first numPublish of them.
func (s *Service) GenerateDummyExplorations(ctx context.Context, committerID string, numGenerate, numPublish int) error {
	if numPublish > numGenerate {
		return apperr.InvalidInput("Generate count cannot be less than publish count")
	}
	for i := range numGenerate {
		title := dummyExplorationTitles[rand.IntN(len(dummyExplorationTitles))]
		exp := Exploration{
			Title:     title,
			Category:  dummyExplorationCategories[rand.IntN(len(dummyExplorationCategories))],
			Objective: "Dummy exploration about " + title,
			States: map[string]State{
				DefaultInitStateName: {Content: "<p>" + title + "</p>", InteractionID: InteractionTextInput},
				"End":                {Content: "<p>Done.</p>", InteractionID: InteractionEndExploration},
			},
		}
		saved, err := s.SaveExploration(ctx, committerID, exp)
		if err != nil {
			return fmt.Errorf("generating dummy exploration: %w", err)
		}
		if i < numPublish {
			if err := s.PublishExploration(ctx, saved.ID); err != nil {
				return err
			}
		}
	}
	s.logger.Info("generated dummy explorations", "generated", numGenerate, "published", numPublish)
	return nil
}

// RollbackExplorationToSafeState reverts an exploration to the highest
// version v for which content and metadata snapshots exist for every version
// 1..v, dropping later snapshots. It returns v.
func (s *Service) RollbackExplorationToSafeState(ctx context.Context, id string) (int, error) {
	exp, err := s.Exploration(ctx, id)
	if err != nil {
		return 0, err
	}

	safe := 0
	for v := 1; v <= exp.Version; v++ {
		ok, err := s.snapshotComplete(ctx, id, v)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		safe = v
	}
	if safe == exp.Version {
		return safe, nil
	}
	if safe == 0 {
		return 0, apperr.InvalidInput("Exploration %s has no complete snapshot to roll back to.", id)
	}

	snap, err := getEntity[SnapshotContent](ctx, s.store, KindSnapshotContent, SnapshotID(id, safe))
	if err != nil {
		return 0, err
	}
	for v := safe + 1; v <= exp.Version; v++ {
		if err := s.deleteSnapshot(ctx, id, v); err != nil {
			return 0, err
		}
	}
	restored := snap.Exploration
	restored.Version = safe
	restored.Published = exp.Published
	if err := putEntity(ctx, s.store, KindExploration, id, restored); err != nil {
		return 0, err
	}
	s.logger.Info("exploration rolled back", "exploration_id", id, "from_version", exp.Version, "to_version", safe)
	return safe, nil
}

func (s *Service) snapshotComplete(ctx context.Context, id string, version int) (bool, error) {
	for _, kind := range []string{KindSnapshotContent, KindSnapshotMetadata} {
		_, err := s.store.Get(ctx, kind, SnapshotID(id, version))
		if apperr.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("reading snapshot %s: %w", SnapshotID(id, version), err)
		}
	}
	return true, nil
}

// explorationAt returns an exploration as of version.
func (s *Service) explorationAt(ctx context.Context, id string, version int) (*Exploration, error) {
	exp, err := s.Exploration(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == exp.Version {
		return exp, nil
	}
	if version < 1 || version > exp.Version {
		return nil, apperr.NotFound("Exploration %s has no version %d.", id, version)
	}
	snap, err := getEntity[SnapshotContent](ctx, s.store, KindSnapshotContent, SnapshotID(id, version))
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("Exploration %s has no version %d.", id, version)
	}
	if err != nil {
		return nil, err
	}
	return &snap.Exploration, nil
}

// InteractionIDs returns the distinct interaction ids used by an
// exploration's states, sorted.
func (s *Service) InteractionIDs(ctx context.Context, id string) ([]string, error) {
	exp, err := s.Exploration(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, st := range exp.States {
		if st.InteractionID != "" && !slices.Contains(ids, st.InteractionID) {
			ids = append(ids, st.InteractionID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
