package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fleetguard/internal/auth"
	"fleetguard/internal/config"
	"fleetguard/internal/model"
	"fleetguard/internal/session"
)

const DemoWorkerName = "Demo User"

type WorkerFinder interface {
	GetByID(ctx context.Context, id string) (*model.Worker, error)
	GetByEmail(ctx context.Context, email string) (*model.Worker, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

type AuthService struct {
	workers WorkerFinder
	issuer  *auth.Issuer
	limiter session.LoginLimiter
	demo    config.DemoConfig
	now     func() time.Time
	log     zerolog.Logger
}

func NewAuthService(workers WorkerFinder, issuer *auth.Issuer, limiter session.LoginLimiter, demo config.DemoConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		workers: workers,
		issuer:  issuer,
		limiter: limiter,
		demo:    demo,
		now:     time.Now,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Login accepts a worker id or an email as identifier.
func (s *AuthService) Login(ctx context.Context, clientIP, identifier, password string) (*model.TokenResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidInput
	}
	key := strings.ToLower(identifier)

	allowed, _, err := s.limiter.CheckLoginAttempt(ctx, clientIP, key)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.log.Warn().Str("ip", clientIP).Str("identifier", key).Msg("login rate limited")
		return nil, ErrTooManyAttempts
	}

	var worker *model.Worker
	if strings.Contains(identifier, "@") {
		worker, err = s.workers.GetByEmail(ctx, identifier)
	} else {
		worker, err = s.workers.GetByID(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(worker.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if worker.Status != model.WorkerStatusActive {
		return nil, ErrAccountInactive
	}

	if err := s.limiter.ResetLoginAttempts(ctx, clientIP, key); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login attempts")
	}
	if err := s.workers.TouchActivity(ctx, worker.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("worker_id", worker.ID).Msg("failed to update last activity")
	}

	return s.issue(worker.Principal())
}

func (s *AuthService) DemoLogin(_ context.Context) (*model.TokenResponse, error) {
	if !s.demo.Enabled {
		return nil, ErrPermissionDenied
	}
	return s.issue(model.Principal{
		WorkerID: s.demo.WorkerID,
		Name:     DemoWorkerName,
		Role:     model.WorkerRoleUser,
		Demo:     true,
	})
}

func (s *AuthService) issue(p model.Principal) (*model.TokenResponse, error) {
	token, expiresAt, err := s.issuer.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Worker:      model.WorkerBrief{ID: p.WorkerID, Name: p.Name, Role: p.Role},
		Demo:        p.Demo,
	}, nil
}
