package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/database"
	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// SessionRepository stores one session document per user.
type SessionRepository interface {
	// Get returns the stored session, or a fresh start session when none exists.
	Get(ctx context.Context, userID string) (*model.Session, error)
	// Save upserts the session and stamps LastInteractionAt.
	Save(ctx context.Context, userID string, session *model.Session) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db  database.DBTX
	now func() time.Time
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db, now: time.Now}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx, now: r.now}
}

func (r *sessionRepo) Get(ctx context.Context, userID string) (*model.Session, error) {
	var record model.SessionRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT user_id, session_data, updated_at FROM sessions WHERE user_id = $1
	`, userID)
	found, err := optional(&record, err)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return model.NewSession(), nil
	}

	session := found.Data
	session.Normalize()
	return &session, nil
}

func (r *sessionRepo) Save(ctx context.Context, userID string, session *model.Session) error {
	now := r.now().UTC()
	session.LastInteractionAt = &now
	session.Normalize()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			session_data = EXCLUDED.session_data,
			updated_at = EXCLUDED.updated_at
	`, userID, *session, now)
	return err
}
