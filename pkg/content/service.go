package content

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alice21mota/oppia/pkg/search"
)

// Indexer receives search documents for published content.
type Indexer interface {
	Add(index, id string, text ...string)
	Remove(index, id string)
	Clear(index string)
}

// Service implements content operations on top of a Store.
type Service struct {
	store  Store
	index  Indexer
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a content service.
func NewService(store Store, index Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, index: index, logger: logger, now: time.Now}
}

func newEntityID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ClearSearchIndex removes every document from the exploration, collection
// and blog post indexes.
func (s *Service) ClearSearchIndex(_ context.Context) {
	for _, idx := range search.Indexes {
		s.index.Clear(idx)
	}
}

// HasUserReferences reports whether any content still names userID as an
// owner, author or committer.
func (s *Service) HasUserReferences(ctx context.Context, userID string) (bool, error) {
	exps, err := listEntities[Exploration](ctx, s.store, KindExploration)
	if err != nil {
		return false, err
	}
	for _, e := range exps {
		if e.OwnerID == userID {
			return true, nil
		}
	}

	cols, err := listEntities[Collection](ctx, s.store, KindCollection)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.OwnerID == userID {
			return true, nil
		}
	}

	posts, err := listEntities[BlogPost](ctx, s.store, KindBlogPost)
	if err != nil {
		return false, err
	}
	for _, p := range posts {
		if p.AuthorID == userID {
			return true, nil
		}
	}

	metas, err := listEntities[SnapshotMetadata](ctx, s.store, KindSnapshotMetadata)
	if err != nil {
		return false, err
	}
	for _, m := range metas {
		if m.CommitterID == userID {
			return true, nil
		}
	}
	return false, nil
}
