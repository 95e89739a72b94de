package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"fleetguard/internal/auth"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
)

var workerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

type WorkerService struct {
	workerRepo *repository.WorkerRepository
}

func NewWorkerService(workerRepo *repository.WorkerRepository) *WorkerService {
	return &WorkerService{workerRepo: workerRepo}
}

func (s *WorkerService) List(ctx context.Context, filter repository.WorkerFilter) ([]model.Worker, error) {
	return s.workerRepo.List(ctx, filter)
}

func (s *WorkerService) Get(ctx context.Context, id string) (*model.Worker, error) {
	worker, err := s.workerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return worker, nil
}

func (s *WorkerService) Create(ctx context.Context, input model.CreateWorkerInput) (*model.Worker, error) {
	id := strings.TrimSpace(input.ID)
	name := strings.TrimSpace(input.Name)
	if !workerIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: worker id must be 1-32 letters, digits, '-' or '_'", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	role := input.Role
	if role == "" {
		role = model.WorkerRoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	if _, err := s.workerRepo.GetByID(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: worker %s already exists", ErrConflict, id)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email, err := s.normalizeEmail(ctx, input.Email, "")
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	worker := &model.Worker{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       model.WorkerStatusActive,
	}
	if err := s.workerRepo.Create(ctx, worker); err != nil {
		return nil, err
	}
	return worker, nil
}

func (s *WorkerService) Update(ctx context.Context, id string, input model.UpdateWorkerInput) (*model.Worker, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if input.Email != nil {
		email, err := s.normalizeEmail(ctx, input.Email, id)
		if err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *input.Role)
		}
		updates["role"] = *input.Role
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *input.Status)
		}
		updates["status"] = *input.Status
	}

	if len(updates) > 0 {
		if err := s.workerRepo.Update(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *WorkerService) Delete(ctx context.Context, principal model.Principal, id string) error {
	if principal.WorkerID == id {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	if err := s.workerRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// normalizeEmail lower-cases the address and checks no other worker than selfID already uses it.
func (s *WorkerService) normalizeEmail(ctx context.Context, raw *string, selfID string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	email := strings.ToLower(strings.TrimSpace(*raw))
	if email == "" {
		return nil, nil
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	existing, err := s.workerRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return nil, fmt.Errorf("%w: email already in use", ErrConflict)
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return &email, nil
}
