package gormstore

import (
	"context"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stagedRepository interface {
	staged() bool
	flushAdds(tx *gorm.DB) error
	flushUpdates(tx *gorm.DB) error
	flushRemovals(tx *gorm.DB) error
	checkpoint() func()
	reset()
}

// UnitOfWork stages mutations across repositories and commits them in one
// database transaction.
type UnitOfWork struct {
	store  *Store
	closed bool

	players              *Repository[entity.Player]
	jobs                 *Repository[entity.Job]
	properties           *Repository[entity.Property]
	vehicles             *Repository[entity.Vehicle]
	vehicleModifications *Repository[entity.VehicleModification]
	bankAccounts         *Repository[entity.BankAccount]
	bankTransactions     *Repository[entity.BankTransaction]
}

func (unit *UnitOfWork) Players() store.Repository[entity.Player] {
	return lazyRepository(unit, &unit.players)
}

func (unit *UnitOfWork) Jobs() store.Repository[entity.Job] {
	return lazyRepository(unit, &unit.jobs)
}

func (unit *UnitOfWork) Properties() store.Repository[entity.Property] {
	return lazyRepository(unit, &unit.properties)
}

func (unit *UnitOfWork) Vehicles() store.Repository[entity.Vehicle] {
	return lazyRepository(unit, &unit.vehicles)
}

func (unit *UnitOfWork) VehicleModifications() store.Repository[entity.VehicleModification] {
	return lazyRepository(unit, &unit.vehicleModifications)
}

func (unit *UnitOfWork) BankAccounts() store.Repository[entity.BankAccount] {
	return lazyRepository(unit, &unit.bankAccounts)
}

func (unit *UnitOfWork) BankTransactions() store.Repository[entity.BankTransaction] {
	return lazyRepository(unit, &unit.bankTransactions)
}

func lazyRepository[T entity.Model](unit *UnitOfWork, slot **Repository[T]) *Repository[T] {
	if *slot == nil {
		*slot = newRepository[T](unit)
	}
	return *slot
}

// repositories lists the instantiated repositories in foreign-key order.
func (unit *UnitOfWork) repositories() []stagedRepository {
	ordered := make([]stagedRepository, 0, 7)
	if unit.players != nil {
		ordered = append(ordered, unit.players)
	}
	if unit.jobs != nil {
		ordered = append(ordered, unit.jobs)
	}
	if unit.properties != nil {
		ordered = append(ordered, unit.properties)
	}
	if unit.vehicles != nil {
		ordered = append(ordered, unit.vehicles)
	}
	if unit.vehicleModifications != nil {
		ordered = append(ordered, unit.vehicleModifications)
	}
	if unit.bankAccounts != nil {
		ordered = append(ordered, unit.bankAccounts)
	}
	if unit.bankTransactions != nil {
		ordered = append(ordered, unit.bankTransactions)
	}
	return ordered
}

// Commit flushes staged inserts, then updates, then removals (in reverse
// order) inside one transaction. Transient faults are retried according to
// the store's RetryPolicy. The unit is closed afterwards either way.
func (unit *UnitOfWork) Commit(ctx context.Context) error {
	if unit.closed {
		return store.ErrUnitClosed
	}
	defer unit.Close()

	repositories := unit.repositories()
	if !anyStaged(repositories) {
		return nil
	}

	policy := unit.store.retry
	var commitErr error
	for attempt := 1; ; attempt++ {
		restore := checkpointAll(repositories)
		commitErr = unit.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return flush(tx, repositories)
		})
		if commitErr == nil {
			return nil
		}
		restore()
		if !isTransient(commitErr) || attempt >= policy.Attempts {
			break
		}
		unit.store.logger.Warn("commit retry after transient fault",
			zap.Int("attempt", attempt),
			zap.Error(commitErr),
		)
		if err := sleepContext(ctx, policy.Backoff*time.Duration(attempt)); err != nil {
			return classifyCommitError(commitErr)
		}
	}
	return classifyCommitError(commitErr)
}

// Close discards staged state. It is idempotent.
func (unit *UnitOfWork) Close() {
	if unit.closed {
		return
	}
	unit.closed = true
	for _, repository := range unit.repositories() {
		repository.reset()
	}
}

func flush(tx *gorm.DB, repositories []stagedRepository) error {
	for _, repository := range repositories {
		if err := repository.flushAdds(tx); err != nil {
			return err
		}
	}
	for _, repository := range repositories {
		if err := repository.flushUpdates(tx); err != nil {
			return err
		}
	}
	for index := len(repositories) - 1; index >= 0; index-- {
		if err := repositories[index].flushRemovals(tx); err != nil {
			return err
		}
	}
	return nil
}

func anyStaged(repositories []stagedRepository) bool {
	for _, repository := range repositories {
		if repository.staged() {
			return true
		}
	}
	return false
}

func checkpointAll(repositories []stagedRepository) func() {
	restores := make([]func(), 0, len(repositories))
	for _, repository := range repositories {
		restores = append(restores, repository.checkpoint())
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
