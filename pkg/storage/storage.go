// Package storage provides asset file storage for user and content entities.
package storage

import (
	"context"
	"fmt"
	"path"
)

// Entity types that own asset directories.
const (
	EntityTypeUser        = "user"
	EntityTypeExploration = "exploration"
	EntityTypeBlogPost    = "blog_post"
	EntityTypeTopic       = "topic"
)

// Profile picture filenames kept for every user.
const (
	ProfilePicturePNG  = "profile_picture.png"
	ProfilePictureWebP = "profile_picture.webp"
)

// FileStore stores asset files under <entity_type>/<entity_id>/assets/.
type FileStore interface {
	// Get returns the file contents, or an apperr NotFound error.
	Get(ctx context.Context, entityType, entityID, filename string) ([]byte, error)

	// Put creates or replaces a file.
	Put(ctx context.Context, entityType, entityID, filename string, data []byte, contentType string) error

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, entityType, entityID, filename string) error

	// Exists reports whether the file exists.
	Exists(ctx context.Context, entityType, entityID, filename string) (bool, error)
}

// Key returns the object key of an asset file.
func Key(entityType, entityID, filename string) string {
	return path.Join(entityType, entityID, "assets", filename)
}

// ContentType guesses the MIME type of an asset from its extension.
func ContentType(filename string) string {
	switch path.Ext(filename) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// Copy copies each named file from one entity directory to another. It
// fails before writing anything when a source file is missing.
func Copy(ctx context.Context, fs FileStore, entityType, fromID, toID string, filenames ...string) error {
	contents := make([][]byte, len(filenames))
	for i, name := range filenames {
		data, err := fs.Get(ctx, entityType, fromID, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", Key(entityType, fromID, name), err)
		}
		contents[i] = data
	}

	for i, name := range filenames {
		if err := fs.Put(ctx, entityType, toID, name, contents[i], ContentType(name)); err != nil {
			return fmt.Errorf("writing %s: %w", Key(entityType, toID, name), err)
		}
	}
	return nil
}

// Remove deletes each named file of an entity.
func Remove(ctx context.Context, fs FileStore, entityType, entityID string, filenames ...string) error {
	for _, name := range filenames {
		if err := fs.Delete(ctx, entityType, entityID, name); err != nil {
			return fmt.Errorf("removing %s: %w", Key(entityType, entityID, name), err)
		}
	}
	return nil
}

// Move copies each named file from one entity directory to another and then
// removes the originals.
func Move(ctx context.Context, fs FileStore, entityType, fromID, toID string, filenames ...string) error {
	if err := Copy(ctx, fs, entityType, fromID, toID, filenames...); err != nil {
		return err
	}
	return Remove(ctx, fs, entityType, fromID, filenames...)
}
