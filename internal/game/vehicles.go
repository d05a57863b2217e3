package game

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
)

const (
	fullHealth          = 1000.0
	fullFuel            = 100.0
	maxDamagePerImpact  = 500.0
	bodyDamageShare     = 0.7
	repairCostPerHealth = 10
	maxPlateLength      = 16
	maxModName          = 64
)

// VehicleSpec describes a vehicle to create.
type VehicleSpec struct {
	ModelHash      int64
	Plate          string
	OwnerID        uint
	PrimaryColor   int
	SecondaryColor int
	Price          int64
	Position       Position
}

// Position is a world location and heading.
type Position struct {
	X, Y, Z  float32
	Rotation float32
}

// ModificationSpec describes a tuning part.
type ModificationSpec struct {
	ModType int
	ModName string
	Cost    int64
	Level   int
}

type VehicleService struct {
	units store.Factory
	now   func() time.Time
}

func NewVehicleService(units store.Factory, now func() time.Time) (*VehicleService, error) {
	if units == nil {
		return nil, fmt.Errorf("%w: unit of work factory is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	return &VehicleService{units: units, now: now}, nil
}

// CreateVehicle registers a locked, fully healthy, fully fuelled vehicle for
// an existing player. Plates are stored upper case and must be unique.
func (service *VehicleService) CreateVehicle(ctx context.Context, spec VehicleSpec) (entity.Vehicle, error) {
	plate := normalizePlate(spec.Plate)
	if plate == "" || len(plate) > maxPlateLength {
		return entity.Vehicle{}, invalid(operationVehicle, subjectVehicle, fmt.Sprintf("plate must have 1 to %d characters", maxPlateLength))
	}
	if spec.Price < 0 {
		return entity.Vehicle{}, invalid(operationVehicle, subjectVehicle, "price must not be negative")
	}
	unit := service.units.Begin(ctx)
	defer unit.Close()
	if _, err := load(ctx, unit.Players(), operationVehicle, subjectPlayer, spec.OwnerID); err != nil {
		return entity.Vehicle{}, err
	}
	vehicle := &entity.Vehicle{
		ModelHash:      spec.ModelHash,
		Plate:          plate,
		OwnerID:        spec.OwnerID,
		PrimaryColor:   spec.PrimaryColor,
		SecondaryColor: spec.SecondaryColor,
		EngineHealth:   fullHealth,
		BodyHealth:     fullHealth,
		Fuel:           fullFuel,
		PositionX:      spec.Position.X,
		PositionY:      spec.Position.Y,
		PositionZ:      spec.Position.Z,
		Rotation:       spec.Position.Rotation,
		Price:          spec.Price,
		IsLocked:       true,
	}
	stamp(&vehicle.Base, service.now())
	unit.Vehicles().Add(vehicle)
	if err := commit(ctx, unit, operationVehicle, subjectVehicle); err != nil {
		return entity.Vehicle{}, err
	}
	return *vehicle, nil
}

func (service *VehicleService) GetVehicle(ctx context.Context, vehicleID uint) (entity.Vehicle, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	vehicle, err := load(ctx, unit.Vehicles(), operationVehicle, subjectVehicle, vehicleID)
	if err != nil {
		return entity.Vehicle{}, err
	}
	return *vehicle, nil
}

func (service *VehicleService) VehicleByPlate(ctx context.Context, plate string) (entity.Vehicle, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	vehicle, err := unit.Vehicles().FirstMatching(ctx, store.Eq(entity.ColumnPlate, normalizePlate(plate)))
	if err != nil {
		return entity.Vehicle{}, ledger.NormalizeStoreError(operationVehicle, subjectVehicle, err)
	}
	return *vehicle, nil
}

// VehiclesOwnedBy lists a player's vehicles, oldest first.
func (service *VehicleService) VehiclesOwnedBy(ctx context.Context, playerID uint) ([]entity.Vehicle, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	vehicles, err := unit.Vehicles().FindMatching(ctx, store.Eq(entity.ColumnOwnerID, playerID), store.OrderBy(entity.ColumnID, false))
	if err != nil {
		return nil, ledger.NormalizeStoreError(operationVehicle, subjectVehicle, err)
	}
	return derefAll(vehicles), nil
}

// ApplyDamage scales damage by impact speed, caps a single impact, and
// recomputes the repair cost from the engine health.
func (service *VehicleService) ApplyDamage(ctx context.Context, vehicleID uint, damage float64, speed float64) (entity.Vehicle, error) {
	if damage < 0 || speed < 0 || math.IsNaN(damage) || math.IsNaN(speed) {
		return entity.Vehicle{}, invalid(operationVehicle, subjectVehicle, "damage and speed must not be negative")
	}
	return service.update(ctx, vehicleID, func(vehicle *entity.Vehicle) {
		actual := math.Min(damage*(speed/100), maxDamagePerImpact)
		vehicle.EngineHealth = math.Max(0, vehicle.EngineHealth-actual)
		vehicle.BodyHealth = math.Max(0, vehicle.BodyHealth-actual*bodyDamageShare)
		vehicle.RepairCost = int64((fullHealth - vehicle.EngineHealth) * repairCostPerHealth)
	})
}

// Repair restores full health and clears window, door and cost state.
func (service *VehicleService) Repair(ctx context.Context, vehicleID uint) (entity.Vehicle, error) {
	return service.update(ctx, vehicleID, func(vehicle *entity.Vehicle) {
		vehicle.EngineHealth = fullHealth
		vehicle.BodyHealth = fullHealth
		vehicle.WindowState = 0
		vehicle.DoorState = 0
		vehicle.RepairCost = 0
	})
}

func (service *VehicleService) AddModification(ctx context.Context, vehicleID uint, spec ModificationSpec) (entity.VehicleModification, error) {
	name := strings.TrimSpace(spec.ModName)
	if name == "" || len(name) > maxModName {
		return entity.VehicleModification{}, invalid(operationVehicle, subjectModification, fmt.Sprintf("name must have 1 to %d bytes", maxModName))
	}
	if spec.Cost < 0 || spec.Level < 0 {
		return entity.VehicleModification{}, invalid(operationVehicle, subjectModification, "cost and level must not be negative")
	}
	unit := service.units.Begin(ctx)
	defer unit.Close()
	if _, err := load(ctx, unit.Vehicles(), operationVehicle, subjectVehicle, vehicleID); err != nil {
		return entity.VehicleModification{}, err
	}
	modification := &entity.VehicleModification{
		VehicleID: vehicleID,
		ModType:   spec.ModType,
		ModName:   name,
		Cost:      spec.Cost,
		Level:     spec.Level,
	}
	stamp(&modification.Base, service.now())
	unit.VehicleModifications().Add(modification)
	if err := commit(ctx, unit, operationVehicle, subjectModification); err != nil {
		return entity.VehicleModification{}, err
	}
	return *modification, nil
}

func (service *VehicleService) Modifications(ctx context.Context, vehicleID uint) ([]entity.VehicleModification, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	modifications, err := unit.VehicleModifications().FindMatching(ctx, store.Eq(entity.ColumnVehicleID, vehicleID), store.OrderBy(entity.ColumnID, false))
	if err != nil {
		return nil, ledger.NormalizeStoreError(operationVehicle, subjectModification, err)
	}
	return derefAll(modifications), nil
}

// DeleteVehicle removes the vehicle together with its modifications.
func (service *VehicleService) DeleteVehicle(ctx context.Context, vehicleID uint) error {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	vehicle, err := load(ctx, unit.Vehicles(), operationVehicle, subjectVehicle, vehicleID)
	if err != nil {
		return err
	}
	modifications, err := unit.VehicleModifications().FindMatching(ctx, store.Eq(entity.ColumnVehicleID, vehicleID))
	if err != nil {
		return ledger.NormalizeStoreError(operationVehicle, subjectModification, err)
	}
	unit.VehicleModifications().RemoveMany(modifications...)
	unit.Vehicles().MarkForRemoval(vehicle)
	return commit(ctx, unit, operationVehicle, subjectVehicle)
}

func (service *VehicleService) update(ctx context.Context, vehicleID uint, mutate func(vehicle *entity.Vehicle)) (entity.Vehicle, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	vehicle, err := load(ctx, unit.Vehicles(), operationVehicle, subjectVehicle, vehicleID)
	if err != nil {
		return entity.Vehicle{}, err
	}
	mutate(vehicle)
	unit.Vehicles().MarkForUpdate(vehicle)
	if err := commit(ctx, unit, operationVehicle, subjectVehicle); err != nil {
		return entity.Vehicle{}, err
	}
	return *vehicle, nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
