package service

import (
	"context"
	"fmt"

	"github.com/yourhelpa/helpa-server-go/internal/lock"
	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/redis"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
)

// SessionService is the only way to mutate a session: every read-modify-write
// runs under the user's lock.
type SessionService struct {
	repo   repository.SessionRepository
	locker lock.Locker
}

func NewSessionService(repo repository.SessionRepository, locker lock.Locker) *SessionService {
	return &SessionService{repo: repo, locker: locker}
}

// Update loads the session, applies fn and saves the result. Nothing is
// saved when fn returns an error.
func (s *SessionService) Update(ctx context.Context, userID string, fn func(*model.Session) error) error {
	return s.WithLocked(ctx, userID, func(session *model.Session) error {
		if err := fn(session); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, userID, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	})
}

// WithLocked loads the session under the user's lock and leaves persistence
// to fn.
func (s *SessionService) WithLocked(ctx context.Context, userID string, fn func(*model.Session) error) error {
	release, err := s.locker.Acquire(ctx, redis.SessionLockKey(userID))
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer release()

	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	session.Normalize()
	return fn(session)
}
