package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/session"
)

// SessionService exposes the inspection workflow to authenticated workers. Requests on the same
// session are serialized, and the session is written back to the store after every change.
type SessionService struct {
	manager *inspection.Manager
	store   session.Store
	locks   *keyedMutex
	log     zerolog.Logger
}

func NewSessionService(manager *inspection.Manager, store session.Store, log zerolog.Logger) *SessionService {
	return &SessionService{
		manager: manager,
		store:   store,
		locks:   newKeyedMutex(),
		log:     log.With().Str("component", "sessions").Logger(),
	}
}

func (s *SessionService) Manager() *inspection.Manager {
	return s.manager
}

// Start opens a session for the truck. An operator already inspecting the same truck gets that
// session back; one inspecting another truck gets ErrConflict.
func (s *SessionService) Start(ctx context.Context, principal model.Principal, truckID, locale string) (*inspection.Session, bool, error) {
	unlock := s.locks.Lock("operator:" + principal.WorkerID)
	defer unlock()

	active, err := s.store.ActiveFor(ctx, principal.WorkerID)
	switch {
	case err == nil:
		if id, _ := inspection.NormalizeVehicleID(truckID); id == active.Vehicle.ID {
			return active, false, nil
		}
		return nil, false, fmt.Errorf("%w: session %s for truck %s is still in progress", ErrConflict, active.Handle, active.Vehicle.ID)
	case !errors.Is(err, session.ErrNotFound):
		return nil, false, err
	}

	op := inspection.Operator{ID: principal.WorkerID, Name: principal.Name}
	sess, err := s.manager.Start(ctx, op, truckID, locale)
	if err != nil {
		return nil, false, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, false, fmt.Errorf("save session: %w", err)
	}
	return sess, true, nil
}

func (s *SessionService) Current(ctx context.Context, principal model.Principal) (*inspection.Session, error) {
	sess, err := s.store.ActiveFor(ctx, principal.WorkerID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// Get lets admins watch any session; workers only see their own.
func (s *SessionService) Get(ctx context.Context, principal model.Principal, handle string) (*inspection.Session, error) {
	sess, err := s.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(sess.Operator.ID) {
		return nil, ErrPermissionDenied
	}
	return sess, nil
}

func (s *SessionService) SetStatus(ctx context.Context, principal model.Principal, handle, raw string) (*inspection.Session, error) {
	status, err := inspection.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, principal, handle, func(sess *inspection.Session) error {
		return s.manager.SetStatus(sess, status)
	})
}

func (s *SessionService) SetComment(ctx context.Context, principal model.Principal, handle, text string) (*inspection.Session, error) {
	return s.mutate(ctx, principal, handle, func(sess *inspection.Session) error {
		return s.manager.SetComment(sess, text)
	})
}

func (s *SessionService) AttachPhoto(ctx context.Context, principal model.Principal, handle string, p inspection.Photo) (*inspection.Session, error) {
	return s.mutate(ctx, principal, handle, func(sess *inspection.Session) error {
		_, err := s.manager.AttachPhoto(sess, p)
		return err
	})
}

func (s *SessionService) RemovePhoto(ctx context.Context, principal model.Principal, handle string, index int) (*inspection.Session, error) {
	return s.mutate(ctx, principal, handle, func(sess *inspection.Session) error {
		return s.manager.RemovePhoto(sess, index)
	})
}

func (s *SessionService) Retreat(ctx context.Context, principal model.Principal, handle string) (*inspection.Session, error) {
	return s.mutate(ctx, principal, handle, func(sess *inspection.Session) error {
		return s.manager.Retreat(sess)
	})
}

// Advance finalizes the current item. When persistence fails the analyzed session is still written
// back, so the next Advance retries the handoff without analyzing again.
func (s *SessionService) Advance(ctx context.Context, principal model.Principal, handle string) (*inspection.Session, *inspection.Step, error) {
	unlock := s.locks.Lock(handle)
	defer unlock()

	sess, err := s.owned(ctx, principal, handle)
	if err != nil {
		return nil, nil, err
	}

	step, err := s.manager.Advance(ctx, sess)
	if err != nil {
		if errors.Is(err, inspection.ErrPersistence) {
			if saveErr := s.store.Save(ctx, sess); saveErr != nil {
				s.log.Error().Err(saveErr).Str("handle", handle).Msg("failed to keep session after persistence failure")
			}
		}
		return nil, nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("save session: %w", err)
	}
	return sess, step, nil
}

func (s *SessionService) Cancel(ctx context.Context, principal model.Principal, handle string) error {
	unlock := s.locks.Lock(handle)
	defer unlock()

	sess, err := s.owned(ctx, principal, handle)
	if err != nil {
		return err
	}
	if err := s.manager.Cancel(sess); err != nil {
		return err
	}
	return s.store.Delete(ctx, sess)
}

func (s *SessionService) mutate(ctx context.Context, principal model.Principal, handle string, fn func(*inspection.Session) error) (*inspection.Session, error) {
	unlock := s.locks.Lock(handle)
	defer unlock()

	sess, err := s.owned(ctx, principal, handle)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// owned loads a session only its operator may change.
func (s *SessionService) owned(ctx context.Context, principal model.Principal, handle string) (*inspection.Session, error) {
	sess, err := s.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if sess.Operator.ID != principal.WorkerID {
		return nil, ErrPermissionDenied
	}
	return sess, nil
}

func (s *SessionService) load(ctx context.Context, handle string) (*inspection.Session, error) {
	sess, err := s.store.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
