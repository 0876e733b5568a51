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

const attemptColumns = `
	id, sequence, account_id, file_name, mime_type, size, owner_id,
	status, status_code, error, result_url, created_at, updated_at
`

// AttemptRepository implements [models.Repository] for [models.UploadAttempt] history.
type AttemptRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.UploadAttempt] = (*AttemptRepository)(nil)

// NewAttemptRepository creates a new [AttemptRepository] with the given database connection
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts an attempt, assigning the next sequence number
func (r *AttemptRepository) Create(ctx context.Context, a *models.UploadAttempt) error {
	if a.ID == "" {
		a.ID = shared.GenerateID()
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "upload_attempts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	a.Sequence = sequence

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	query := `INSERT INTO upload_attempts (` + attemptColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Sequence, a.AccountID, a.FileName, a.MIMEType, a.Size, a.OwnerID,
		string(a.Status), a.StatusCode, a.Error, a.ResultURL, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID
func (r *AttemptRepository) Get(ctx context.Context, id string) (*models.UploadAttempt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM upload_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAttemptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload attempt: %w", err)
	}
	return a, nil
}

// Update stores the outcome fields of an attempt
func (r *AttemptRepository) Update(ctx context.Context, a *models.UploadAttempt) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	query := `
		UPDATE upload_attempts
		SET owner_id = ?, status = ?, status_code = ?, error = ?, result_url = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		a.OwnerID, string(a.Status), a.StatusCode, a.Error, a.ResultURL, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload attempt: %w", err)
	}
	return affected(result, shared.ErrAttemptNotFound, a.ID)
}

// Delete removes an attempt by ID
func (r *AttemptRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM upload_attempts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload attempt: %w", err)
	}
	return affected(result, shared.ErrAttemptNotFound, id)
}

// List returns the newest attempts first. A non-positive limit returns all rows.
func (r *AttemptRepository) List(ctx context.Context, limit int) ([]*models.UploadAttempt, error) {
	return r.list(ctx, "", limit)
}

// ListByAccount is [AttemptRepository.List] restricted to one account.
func (r *AttemptRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.UploadAttempt, error) {
	return r.list(ctx, accountID, limit)
}

// CountByStatus tallies attempts per status.
func (r *AttemptRepository) CountByStatus(ctx context.Context) (map[models.AttemptStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_attempts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count upload attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AttemptStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.AttemptStatus(status)] = count
	}
	return counts, rows.Err()
}

func (r *AttemptRepository) list(ctx context.Context, accountID string, limit int) ([]*models.UploadAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM upload_attempts`
	args := []any{}

	if accountID != "" {
		query += " WHERE account_id = ?"
		args = append(args, accountID)
	}

	query += " ORDER BY sequence DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.UploadAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row scanner) (*models.UploadAttempt, error) {
	var (
		a      models.UploadAttempt
		status string
	)
	err := row.Scan(
		&a.ID, &a.Sequence, &a.AccountID, &a.FileName, &a.MIMEType, &a.Size, &a.OwnerID,
		&status, &a.StatusCode, &a.Error, &a.ResultURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = models.AttemptStatus(status)
	return &a, nil
}
