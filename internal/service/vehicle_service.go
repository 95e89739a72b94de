package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
)

const minVehicleYear = 1950

type VehicleService struct {
	vehicleRepo *repository.VehicleRepository
}

func NewVehicleService(vehicleRepo *repository.VehicleRepository) *VehicleService {
	return &VehicleService{vehicleRepo: vehicleRepo}
}

// Lookup resolves a truck for a starting inspection.
func (s *VehicleService) Lookup(ctx context.Context, vehicleID string) (*inspection.Vehicle, error) {
	v, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", inspection.ErrVehicleNotFound, vehicleID)
		}
		return nil, err
	}
	return &inspection.Vehicle{
		ID:     v.ID,
		Model:  v.Model,
		Year:   v.Year,
		Status: string(v.Status),
	}, nil
}

func (s *VehicleService) List(ctx context.Context, filter repository.VehicleFilter) ([]model.Vehicle, error) {
	return s.vehicleRepo.List(ctx, filter)
}

func (s *VehicleService) Get(ctx context.Context, id string) (*model.Vehicle, error) {
	normalized, err := inspection.NormalizeVehicleID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	v, err := s.vehicleRepo.GetByID(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *VehicleService) Create(ctx context.Context, input model.CreateVehicleInput) (*model.Vehicle, error) {
	id, err := inspection.NormalizeVehicleID(input.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	modelName := strings.TrimSpace(input.Model)
	if modelName == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidInput)
	}
	if err := validateYear(input.Year); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = model.VehicleStatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	if _, err := s.vehicleRepo.GetByID(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: truck %s already exists", ErrConflict, id)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	vehicle := &model.Vehicle{ID: id, Model: modelName, Year: input.Year, Status: status}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) Update(ctx context.Context, id string, input model.UpdateVehicleInput) (*model.Vehicle, error) {
	vehicle, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Model != nil {
		modelName := strings.TrimSpace(*input.Model)
		if modelName == "" {
			return nil, fmt.Errorf("%w: model cannot be empty", ErrInvalidInput)
		}
		updates["model"] = modelName
	}
	if input.Year != nil {
		if err := validateYear(*input.Year); err != nil {
			return nil, err
		}
		updates["year"] = *input.Year
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *input.Status)
		}
		updates["status"] = *input.Status
	}

	if len(updates) > 0 {
		if err := s.vehicleRepo.Update(ctx, vehicle.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return s.Get(ctx, vehicle.ID)
}

func validateYear(year int) error {
	if year < minVehicleYear || year > time.Now().Year()+1 {
		return fmt.Errorf("%w: year must be between %d and %d", ErrInvalidInput, minVehicleYear, time.Now().Year()+1)
	}
	return nil
}
