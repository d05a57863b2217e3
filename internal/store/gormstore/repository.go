package gormstore

import (
	"context"
	"fmt"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the GORM implementation of store.Repository for one entity kind.
type Repository[T entity.Model] struct {
	unit    *UnitOfWork
	added   []*T
	updated []*T
	removed []*T
}

func newRepository[T entity.Model](unit *UnitOfWork) *Repository[T] {
	return &Repository[T]{unit: unit}
}

func (repository *Repository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	return repository.FirstMatching(ctx, store.Eq(entity.ColumnID, id))
}

func (repository *Repository[T]) FirstMatching(ctx context.Context, predicate store.Predicate, options ...store.QueryOption) (*T, error) {
	records, err := repository.find(ctx, predicate, append(options, store.Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s where %s: %w", tableName[T](), predicate, store.ErrNotFound)
	}
	return records[0], nil
}

func (repository *Repository[T]) FindMatching(ctx context.Context, predicate store.Predicate, options ...store.QueryOption) ([]*T, error) {
	return repository.find(ctx, predicate, options...)
}

func (repository *Repository[T]) GetAll(ctx context.Context, options ...store.QueryOption) ([]*T, error) {
	return repository.find(ctx, store.Predicate{}, options...)
}

func (repository *Repository[T]) Count(ctx context.Context, predicates ...store.Predicate) (int64, error) {
	db, err := repository.session(ctx, store.And(predicates...))
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, wrapReadError(tableName[T](), err)
	}
	return count, nil
}

// Add stages an insert. Zero timestamps are filled from the store clock.
func (repository *Repository[T]) Add(record *T) {
	if record == nil {
		return
	}
	base := entity.RecordOf(record)
	now := repository.unit.store.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = now
	}
	repository.added = append(repository.added, record)
}

func (repository *Repository[T]) AddMany(records ...*T) {
	for _, record := range records {
		repository.Add(record)
	}
}

// MarkForUpdate stages an update and refreshes the update timestamp.
// Marking the same record twice stages it once.
func (repository *Repository[T]) MarkForUpdate(record *T) {
	if record == nil || containsRecord(repository.updated, record) {
		return
	}
	entity.RecordOf(record).Touch(repository.unit.store.now())
	repository.updated = append(repository.updated, record)
}

func (repository *Repository[T]) MarkForRemoval(record *T) {
	if record == nil || containsRecord(repository.removed, record) {
		return
	}
	repository.removed = append(repository.removed, record)
}

func (repository *Repository[T]) RemoveMany(records ...*T) {
	for _, record := range records {
		repository.MarkForRemoval(record)
	}
}

func (repository *Repository[T]) find(ctx context.Context, predicate store.Predicate, options ...store.QueryOption) ([]*T, error) {
	db, err := repository.session(ctx, predicate)
	if err != nil {
		return nil, err
	}
	var records []*T
	if err := applyQuery(db, store.BuildQuery(options...)).Find(&records).Error; err != nil {
		return nil, wrapReadError(tableName[T](), err)
	}
	return records, nil
}

func (repository *Repository[T]) session(ctx context.Context, predicate store.Predicate) (*gorm.DB, error) {
	if repository.unit.closed {
		return nil, store.ErrUnitClosed
	}
	return applyPredicate(repository.unit.store.db.WithContext(ctx).Model(new(T)), predicate)
}

func (repository *Repository[T]) staged() bool {
	return len(repository.added)+len(repository.updated)+len(repository.removed) > 0
}

func (repository *Repository[T]) flushAdds(tx *gorm.DB) error {
	if len(repository.added) == 0 {
		return nil
	}
	return tx.Create(repository.added).Error
}

// flushUpdates writes every column guarded by the version the record was read
// at; a row that no longer carries that version was changed by someone else.
func (repository *Repository[T]) flushUpdates(tx *gorm.DB) error {
	for _, record := range repository.updated {
		base := entity.RecordOf(record)
		expected := base.Version
		base.Version = expected + 1
		result := tx.Model(record).
			Where(clause.Eq{Column: clause.Column{Name: entity.ColumnVersion}, Value: expected}).
			Select("*").
			Omit(entity.ColumnID, entity.ColumnCreatedAt).
			Updates(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s id=%d version=%d", store.ErrStale, tableName[T](), base.ID, expected)
		}
	}
	return nil
}

func (repository *Repository[T]) flushRemovals(tx *gorm.DB) error {
	for _, record := range repository.removed {
		base := entity.RecordOf(record)
		result := tx.Where(clause.Eq{Column: clause.Column{Name: entity.ColumnVersion}, Value: base.Version}).Delete(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s id=%d version=%d", store.ErrStale, tableName[T](), base.ID, base.Version)
		}
	}
	return nil
}

// checkpoint captures the in-memory identity state of staged records so a
// rolled back commit leaves them as they were before the attempt.
func (repository *Repository[T]) checkpoint() func() {
	type savedBase struct {
		target *entity.Base
		value  entity.Base
	}
	saved := make([]savedBase, 0, len(repository.added)+len(repository.updated))
	for _, group := range [][]*T{repository.added, repository.updated} {
		for _, record := range group {
			base := entity.RecordOf(record)
			saved = append(saved, savedBase{target: base, value: *base})
		}
	}
	return func() {
		for _, entry := range saved {
			*entry.target = entry.value
		}
	}
}

func (repository *Repository[T]) reset() {
	repository.added = nil
	repository.updated = nil
	repository.removed = nil
}

func containsRecord[T entity.Model](records []*T, record *T) bool {
	for _, candidate := range records {
		if candidate == record {
			return true
		}
	}
	return false
}

type tabler interface {
	TableName() string
}

func tableName[T entity.Model]() string {
	var zero T
	if named, ok := any(zero).(tabler); ok {
		return named.TableName()
	}
	return fmt.Sprintf("%T", zero)
}
