// Package store defines the storage-agnostic repository and unit-of-work
// contracts every service persists through.
package store

import (
	"context"
	"errors"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
)

// Errors reported by store implementations.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("unique constraint violated")
	ErrStale        = errors.New("record modified concurrently")
	ErrUnitClosed   = errors.New("unit of work closed")
	ErrInvalidQuery = errors.New("invalid query")
)

// Repository is a predicate-queryable collection of one entity kind.
// Reads hit storage immediately; mutations are staged until the owning
// UnitOfWork commits.
type Repository[T entity.Model] interface {
	GetByID(ctx context.Context, id uint) (*T, error)
	FirstMatching(ctx context.Context, predicate Predicate, options ...QueryOption) (*T, error)
	FindMatching(ctx context.Context, predicate Predicate, options ...QueryOption) ([]*T, error)
	GetAll(ctx context.Context, options ...QueryOption) ([]*T, error)
	Count(ctx context.Context, predicates ...Predicate) (int64, error)

	Add(record *T)
	AddMany(records ...*T)
	MarkForUpdate(record *T)
	MarkForRemoval(record *T)
	RemoveMany(records ...*T)
}

// UnitOfWork groups the repositories of one logical operation under a single
// atomic commit. A unit is never shared between concurrent callers.
type UnitOfWork interface {
	Players() Repository[entity.Player]
	BankAccounts() Repository[entity.BankAccount]
	BankTransactions() Repository[entity.BankTransaction]
	Vehicles() Repository[entity.Vehicle]
	VehicleModifications() Repository[entity.VehicleModification]
	Properties() Repository[entity.Property]
	Jobs() Repository[entity.Job]

	// Commit flushes every staged mutation atomically and closes the unit.
	Commit(ctx context.Context) error
	// Close discards staged mutations. It is safe to call after Commit.
	Close()
}

// Factory opens units of work.
type Factory interface {
	Begin(ctx context.Context) UnitOfWork
}
