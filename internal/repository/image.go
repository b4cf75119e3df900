package repository

import (
	"context"

	"restmold/internal/database"
	"restmold/internal/models"
)

// ImageSchema maps models.Image onto the images table. Images declare a
// deletion timestamp, so SoftDelete works on them.
func ImageSchema() Schema[models.Image] {
	return Schema[models.Image]{
		Table:    "images",
		IDColumn: "id",
		Columns: []string{
			"id", "path", "caption", "created_at", "updated_at", "deleted_at",
		},
		Fields: func(i *models.Image) []any {
			return []any{&i.ID, &i.Path, &i.Caption, &i.CreatedAt, &i.UpdatedAt, &i.DeletedAt}
		},
		InsertColumns: []string{"path", "caption"},
		InsertValues: func(i models.Image) []any {
			return []any{i.Path, i.Caption}
		},
		UpdatedAtColumn:  "updated_at",
		SoftDeleteColumn: "deleted_at",
	}
}

// ImageRepository handles stored image metadata.
type ImageRepository struct {
	*Repository[models.Image, int64]
}

// NewImageRepository binds an image repository to a session.
func NewImageRepository(session *database.Session) (*ImageRepository, error) {
	base, err := New[models.Image, int64](ImageSchema(), session)
	if err != nil {
		return nil, err
	}
	return &ImageRepository{Repository: base}, nil
}

// NewImageReader binds a read-only image repository to the pool.
func NewImageReader(q database.Querier) (*ImageRepository, error) {
	base, err := NewReadOnly[models.Image, int64](ImageSchema(), q)
	if err != nil {
		return nil, err
	}
	return &ImageRepository{Repository: base}, nil
}

// GetByPath fetches image metadata by its unique storage path.
func (r *ImageRepository) GetByPath(ctx context.Context, path string) (models.Image, error) {
	return r.GetBy(ctx, "path", path)
}

// Active lists images that have not been soft deleted.
func (r *ImageRepository) Active(ctx context.Context, page Page) ([]models.Image, error) {
	return r.Filter(ctx, Filters{IsNull("deleted_at")}, page)
}
