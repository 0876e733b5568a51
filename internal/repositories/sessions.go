package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
)

const sessionColumns = `
	id, sequence, account_id, username, display_name, tenant_id,
	access_token, refresh_token, token_type, expiry, id_token, created_at, updated_at
`

// SessionRepository implements [models.Repository] for [models.Session].
type SessionRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Session] = (*SessionRepository)(nil)

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session with generated ID and sequence
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = shared.GenerateID()
	}
	s.Sequence = sequence
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Sequence, s.Principal.AccountID, s.Principal.Username, s.Principal.DisplayName, s.Principal.TenantID,
		s.AccessToken, s.RefreshToken, s.TokenType, nullTime(s.Expiry), s.IDToken, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return r.scanOne(row, id)
}

// GetByAccount retrieves the session of the given account
func (r *SessionRepository) GetByAccount(ctx context.Context, accountID string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE account_id = ?`, accountID)
	return r.scanOne(row, accountID)
}

// Active returns the most recently used session.
func (r *SessionRepository) Active(ctx context.Context) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, sequence DESC LIMIT 1`)
	return r.scanOne(row, "active")
}

// Update replaces the tokens and profile of an existing session
func (r *SessionRepository) Update(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sessions
		SET username = ?, display_name = ?, tenant_id = ?, access_token = ?, refresh_token = ?,
		    token_type = ?, expiry = ?, id_token = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Principal.Username, s.Principal.DisplayName, s.Principal.TenantID, s.AccessToken, s.RefreshToken,
		s.TokenType, nullTime(s.Expiry), s.IDToken, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return affected(result, shared.ErrSessionNotFound, s.ID)
}

// Save upserts the session keyed by its account.
func (r *SessionRepository) Save(ctx context.Context, s *models.Session) error {
	existing, err := r.GetByAccount(ctx, s.Principal.AccountID)
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
		return r.Create(ctx, s)
	case err != nil:
		return err
	}

	s.ID = existing.ID
	s.Sequence = existing.Sequence
	s.CreatedAt = existing.CreatedAt
	return r.Update(ctx, s)
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return affected(result, shared.ErrSessionNotFound, id)
}

// DeleteByAccount signs the account out.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return affected(result, shared.ErrSessionNotFound, accountID)
}

// List returns sessions, most recently used first. A non-positive limit returns all rows.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC, sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) scanOne(row *sql.Row, key string) (*models.Session, error) {
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		s      models.Session
		expiry sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Sequence, &s.Principal.AccountID, &s.Principal.Username, &s.Principal.DisplayName,
		&s.Principal.TenantID, &s.AccessToken, &s.RefreshToken, &s.TokenType, &expiry, &s.IDToken,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiry.Valid {
		s.Expiry = expiry.Time
	}
	return &s, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
