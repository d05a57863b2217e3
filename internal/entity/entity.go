// Package entity defines the persisted records of the game economy.
//
// Entities are passive: they carry data and field-level invariants only.
// Relations are explicit foreign-key columns; there are no navigation fields.
package entity

import "time"

// Base carries the identity, audit timestamps and optimistic concurrency token
// shared by every entity.
type Base struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int64     `gorm:"not null;default:0"`
}

// Record exposes the embedded Base of any entity.
func (base *Base) Record() *Base {
	return base
}

// Touch refreshes the update timestamp.
func (base *Base) Touch(now time.Time) {
	base.UpdatedAt = now.UTC()
}

// Recorder is implemented by pointers to every entity kind.
type Recorder interface {
	Record() *Base
}

// Model is the closed set of persisted entity kinds.
type Model interface {
	Player | BankAccount | BankTransaction | Vehicle | VehicleModification | Property | Job
}

// RecordOf returns the Base of an entity pointer.
func RecordOf[T Model](record *T) *Base {
	return any(record).(Recorder).Record()
}
