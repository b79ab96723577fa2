package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("entity not found")

// EntityMapper maps between domain and database model types.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) D
	ToModel(domain D) E
}

// Repository provides generic persistence operations for one model type.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository. label names the entity in errors.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{db: db, mapper: mapper, label: label}
}

// Create inserts d.
func (r Repository[D, E]) Create(ctx context.Context, d D) error {
	entity := r.mapper.ToModel(d)
	if err := r.db.Session(ctx).Create(&entity).Error; err != nil {
		return fmt.Errorf("create %s: %w", r.label, err)
	}
	return nil
}

// Find retrieves entities matching q.
func (r Repository[D, E]) Find(ctx context.Context, q Query) ([]D, error) {
	var entities []E
	if err := q.Apply(r.db.Session(ctx).Model(new(E))).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}

	domains := make([]D, len(entities))
	for i, entity := range entities {
		domains[i] = r.mapper.ToDomain(entity)
	}
	return domains, nil
}

// FindOne retrieves the first entity matching q.
func (r Repository[D, E]) FindOne(ctx context.Context, q Query) (D, error) {
	var entity E
	if err := q.Apply(r.db.Session(ctx)).First(&entity).Error; err != nil {
		var zero D
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
		}
		return zero, fmt.Errorf("find one %s: %w", r.label, err)
	}
	return r.mapper.ToDomain(entity), nil
}

// Count returns the number of entities matching q's filters.
func (r Repository[D, E]) Count(ctx context.Context, q Query) (int64, error) {
	var count int64
	if err := q.Limit(0).Apply(r.db.Session(ctx).Model(new(E))).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

// Update sets columns on every entity matching q and returns how many changed.
func (r Repository[D, E]) Update(ctx context.Context, q Query, columns map[string]any) (int64, error) {
	result := q.Apply(r.db.Session(ctx).Model(new(E))).Updates(columns)
	if result.Error != nil {
		return 0, fmt.Errorf("update %s: %w", r.label, result.Error)
	}
	return result.RowsAffected, nil
}

// WithTx returns a repository bound to an open transaction.
func (r Repository[D, E]) WithTx(tx *gorm.DB) Repository[D, E] {
	return Repository[D, E]{db: Database{db: tx}, mapper: r.mapper, label: r.label}
}
