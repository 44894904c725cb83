package notes

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository performs row-level note operations against the persistent
// store. Ownership decisions live in the service; the repository only
// touches rows it is told to.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps a database handle.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("notes: database handle is required")
	}
	return &Repository{db: db}, nil
}

// CountCompleted returns how many completed notes the user owns. Only
// completed notes count toward the free-tier quota.
func (r *Repository) CountCompleted(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Note{}).
		Where("user_id = ? AND status = ?", userID, StatusCompleted).
		Count(&count).Error
	return count, err
}

// Insert persists a new note row.
func (r *Repository) Insert(ctx context.Context, note *Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

// GetByID fetches a single note regardless of owner.
func (r *Repository) GetByID(ctx context.Context, id string) (Note, error) {
	var note Note
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// List returns one page of the user's completed notes, newest first,
// along with the total completed count for pagination.
func (r *Repository) List(ctx context.Context, userID string, page, pageSize int) ([]Note, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&Note{}).
		Where("user_id = ? AND status = ?", userID, StatusCompleted)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Note
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update writes the given column values on a note row.
func (r *Repository) Update(ctx context.Context, id string, values map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&Note{}).
		Where("id = ?", id).
		Updates(values).Error
}

// Delete removes a note row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Note{}).Error
}
