package game

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
)

const (
	defaultJobColor = "#FFFFFF"
	maxJobName      = 64
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// JobSpec describes a job to create.
type JobSpec struct {
	Name          string
	Description   string
	BaseSalary    int64
	RequiredLevel int
	Color         string
}

// JobUpdate changes the non-nil fields of a job.
type JobUpdate struct {
	Description   *string
	BaseSalary    *int64
	RequiredLevel *int
	Color         *string
	IsActive      *bool
}

// DefaultJobs is the job catalogue seeded into a fresh database.
func DefaultJobs() []JobSpec {
	return []JobSpec{
		{Name: "Taxi Driver", Description: "Drive passengers around the city", BaseSalary: 5000, RequiredLevel: 1, Color: "#FFD700"},
		{Name: "Truck Driver", Description: "Deliver cargo between warehouses", BaseSalary: 8000, RequiredLevel: 5, Color: "#8B4513"},
		{Name: "Mechanic", Description: "Repair and tune vehicles", BaseSalary: 10000, RequiredLevel: 10, Color: "#808080"},
		{Name: "Police Officer", Description: "Keep the city safe", BaseSalary: 12000, RequiredLevel: 15, Color: "#0000FF"},
		{Name: "Doctor", Description: "Treat injured citizens", BaseSalary: 15000, RequiredLevel: 20, Color: "#FF0000"},
	}
}

type JobService struct {
	units store.Factory
	now   func() time.Time
}

func NewJobService(units store.Factory, now func() time.Time) (*JobService, error) {
	if units == nil {
		return nil, fmt.Errorf("%w: unit of work factory is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	return &JobService{units: units, now: now}, nil
}

// CreateJob adds an active job. A taken name fails with ledger.ErrConflict.
func (service *JobService) CreateJob(ctx context.Context, spec JobSpec) (entity.Job, error) {
	job, err := service.buildJob(spec)
	if err != nil {
		return entity.Job{}, err
	}
	unit := service.units.Begin(ctx)
	defer unit.Close()
	unit.Jobs().Add(job)
	if err := commit(ctx, unit, operationJob, subjectJob); err != nil {
		return entity.Job{}, err
	}
	return *job, nil
}

// CreateIfNotExists returns the job named spec.Name, creating it when absent.
func (service *JobService) CreateIfNotExists(ctx context.Context, spec JobSpec) (entity.Job, bool, error) {
	existing, err := service.JobByName(ctx, spec.Name)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ledger.ErrNotFound):
		return entity.Job{}, false, err
	}
	job, err := service.CreateJob(ctx, spec)
	if errors.Is(err, ledger.ErrConflict) {
		existing, lookupErr := service.JobByName(ctx, spec.Name)
		return existing, false, lookupErr
	}
	return job, err == nil, err
}

// SeedDefaultJobs creates every missing job of DefaultJobs and reports how
// many were created.
func (service *JobService) SeedDefaultJobs(ctx context.Context) (int, error) {
	created := 0
	for _, spec := range DefaultJobs() {
		_, fresh, err := service.CreateIfNotExists(ctx, spec)
		if err != nil {
			return created, err
		}
		if fresh {
			created++
		}
	}
	return created, nil
}

func (service *JobService) GetJob(ctx context.Context, jobID uint) (entity.Job, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	job, err := load(ctx, unit.Jobs(), operationJob, subjectJob, jobID)
	if err != nil {
		return entity.Job{}, err
	}
	return *job, nil
}

func (service *JobService) JobByName(ctx context.Context, name string) (entity.Job, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	job, err := unit.Jobs().FirstMatching(ctx, store.Eq(entity.ColumnName, strings.TrimSpace(name)))
	if err != nil {
		return entity.Job{}, ledger.NormalizeStoreError(operationJob, subjectJob, err)
	}
	return *job, nil
}

// ActiveJobs lists active jobs by required level, then name.
func (service *JobService) ActiveJobs(ctx context.Context) ([]entity.Job, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	jobs, err := unit.Jobs().FindMatching(ctx, store.Eq(entity.ColumnIsActive, true),
		store.OrderBy(entity.ColumnRequiredLevel, false),
		store.OrderBy(entity.ColumnName, false),
	)
	if err != nil {
		return nil, ledger.NormalizeStoreError(operationJob, subjectJob, err)
	}
	return derefAll(jobs), nil
}

func (service *JobService) UpdateJob(ctx context.Context, jobID uint, update JobUpdate) (entity.Job, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	job, err := load(ctx, unit.Jobs(), operationJob, subjectJob, jobID)
	if err != nil {
		return entity.Job{}, err
	}
	if update.Description != nil {
		job.Description = strings.TrimSpace(*update.Description)
	}
	if update.BaseSalary != nil {
		job.BaseSalary = *update.BaseSalary
	}
	if update.RequiredLevel != nil {
		job.RequiredLevel = *update.RequiredLevel
	}
	if update.Color != nil {
		job.Color = *update.Color
	}
	if update.IsActive != nil {
		job.IsActive = *update.IsActive
	}
	if err := validateJob(job); err != nil {
		return entity.Job{}, err
	}
	unit.Jobs().MarkForUpdate(job)
	if err := commit(ctx, unit, operationJob, subjectJob); err != nil {
		return entity.Job{}, err
	}
	return *job, nil
}

func (service *JobService) DeleteJob(ctx context.Context, jobID uint) error {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	job, err := load(ctx, unit.Jobs(), operationJob, subjectJob, jobID)
	if err != nil {
		return err
	}
	unit.Jobs().MarkForRemoval(job)
	return commit(ctx, unit, operationJob, subjectJob)
}

func (service *JobService) buildJob(spec JobSpec) (*entity.Job, error) {
	color := strings.TrimSpace(spec.Color)
	if color == "" {
		color = defaultJobColor
	}
	job := &entity.Job{
		Name:          strings.TrimSpace(spec.Name),
		Description:   strings.TrimSpace(spec.Description),
		BaseSalary:    spec.BaseSalary,
		RequiredLevel: spec.RequiredLevel,
		Color:         color,
		IsActive:      true,
	}
	if err := validateJob(job); err != nil {
		return nil, err
	}
	stamp(&job.Base, service.now())
	return job, nil
}

func validateJob(job *entity.Job) error {
	switch {
	case job.Name == "" || len(job.Name) > maxJobName:
		return invalid(operationJob, subjectJob, fmt.Sprintf("name must have 1 to %d bytes", maxJobName))
	case job.BaseSalary < 0:
		return invalid(operationJob, subjectJob, "base salary must not be negative")
	case job.RequiredLevel < 0:
		return invalid(operationJob, subjectJob, "required level must not be negative")
	case !colorPattern.MatchString(job.Color):
		return invalid(operationJob, subjectJob, "color must be #RRGGBB")
	}
	return nil
}
