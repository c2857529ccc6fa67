package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/repository"
)

const photoColumns = `
	id, display_name, source_name, content_hash, captured_at,
	left_eye_x, left_eye_y, right_eye_x, right_eye_y,
	face_detected, included_in_output, manual_order, aligned_at,
	created_at, updated_at
`

// PhotoRepository implements photo.Store for SQLite
type PhotoRepository struct {
	db *DB
	q  querier
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *DB) *PhotoRepository {
	return &PhotoRepository{db: db, q: db}
}

// InTx runs fn with a repository bound to a new transaction. Nested calls
// reuse the enclosing transaction.
func (r *PhotoRepository) InTx(ctx context.Context, fn func(photo.Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PhotoRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Create inserts a photo and sets its ID
func (r *PhotoRepository) Create(ctx context.Context, p *photo.Photo) error {
	if err := photo.Validate(*p); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO photos (
			display_name, source_name, content_hash, captured_at,
			left_eye_x, left_eye_y, right_eye_x, right_eye_y,
			face_detected, included_in_output, manual_order, aligned_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	lx, ly, rx, ry := eyeColumns(p.Eyes)
	result, err := r.q.ExecContext(ctx, query,
		p.DisplayName,
		p.SourceName,
		p.ContentHash,
		nullTime(p.CapturedAt),
		lx, ly, rx, ry,
		p.FaceDetected,
		p.IncludedInOutput,
		nullInt(p.ManualOrder),
		nullTime(p.AlignedAt),
		p.CreatedAt.UTC(),
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to create photo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get photo id: %w", err)
	}
	p.ID = id

	return nil
}

// Get retrieves a photo by ID
func (r *PhotoRepository) Get(ctx context.Context, id int64) (*photo.Photo, error) {
	query := `SELECT` + photoColumns + `FROM photos WHERE id = ?`

	p, err := scanPhoto(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return p, nil
}

// GetByContentHash retrieves the photo stored with the given digest
func (r *PhotoRepository) GetByContentHash(ctx context.Context, hash string) (*photo.Photo, error) {
	query := `SELECT` + photoColumns + `FROM photos WHERE content_hash = ?`

	p, err := scanPhoto(r.q.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo by hash: %w", err)
	}
	return p, nil
}

// Update writes the mutable fields of a photo
func (r *PhotoRepository) Update(ctx context.Context, p *photo.Photo) error {
	if err := photo.Validate(*p); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE photos
		SET captured_at = ?,
		    left_eye_x = ?, left_eye_y = ?, right_eye_x = ?, right_eye_y = ?,
		    face_detected = ?, included_in_output = ?, manual_order = ?,
		    aligned_at = ?, updated_at = ?
		WHERE id = ?
	`

	lx, ly, rx, ry := eyeColumns(p.Eyes)
	result, err := r.q.ExecContext(ctx, query,
		nullTime(p.CapturedAt),
		lx, ly, rx, ry,
		p.FaceDetected,
		p.IncludedInOutput,
		nullInt(p.ManualOrder),
		nullTime(p.AlignedAt),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to update photo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a photo record
func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns every photo in ID order
func (r *PhotoRepository) List(ctx context.Context) ([]photo.Photo, error) {
	query := `SELECT` + photoColumns + `FROM photos ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []photo.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo rows: %w", err)
	}

	return photos, nil
}

// ReserveDisplayNumbers claims count consecutive display numbers past both
// the persisted high-water mark and every numeric display name in use.
func (r *PhotoRepository) ReserveDisplayNumbers(ctx context.Context, count int) (int64, error) {
	if count <= 0 {
		return 0, repository.ErrInvalidInput
	}
	if r.db != nil {
		var start int64
		err := r.InTx(ctx, func(tx photo.Repository) error {
			var err error
			start, err = tx.ReserveDisplayNumbers(ctx, count)
			return err
		})
		return start, err
	}

	var high int64
	err := r.q.QueryRowContext(ctx,
		`SELECT value FROM sequence_state WHERE name = 'display_number'`,
	).Scan(&high)
	if err != nil {
		return 0, fmt.Errorf("failed to read display number mark: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `SELECT display_name FROM photos`)
	if err != nil {
		return 0, fmt.Errorf("failed to list display names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, fmt.Errorf("failed to scan display name: %w", err)
		}
		if n, err := strconv.ParseInt(photo.DisplayStem(name), 10, 64); err == nil && n > high {
			high = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating display names: %w", err)
	}

	start := high + 1
	_, err = r.q.ExecContext(ctx,
		`UPDATE sequence_state SET value = ? WHERE name = 'display_number'`,
		high+int64(count),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to advance display number mark: %w", err)
	}

	return start, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*photo.Photo, error) {
	var p photo.Photo
	var capturedAt, alignedAt sql.NullTime
	var lx, ly, rx, ry sql.NullFloat64
	var manualOrder sql.NullInt64

	if err := row.Scan(
		&p.ID,
		&p.DisplayName,
		&p.SourceName,
		&p.ContentHash,
		&capturedAt,
		&lx, &ly, &rx, &ry,
		&p.FaceDetected,
		&p.IncludedInOutput,
		&manualOrder,
		&alignedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if capturedAt.Valid {
		t := capturedAt.Time.UTC()
		p.CapturedAt = &t
	}
	if alignedAt.Valid {
		t := alignedAt.Time.UTC()
		p.AlignedAt = &t
	}
	if lx.Valid && ly.Valid && rx.Valid && ry.Valid {
		p.Eyes = &photo.EyeGeometry{
			Left:  photo.Point{X: lx.Float64, Y: ly.Float64},
			Right: photo.Point{X: rx.Float64, Y: ry.Float64},
		}
	}
	if manualOrder.Valid {
		o := int(manualOrder.Int64)
		p.ManualOrder = &o
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}

func eyeColumns(eyes *photo.EyeGeometry) (lx, ly, rx, ry sql.NullFloat64) {
	if eyes == nil {
		return
	}
	return sql.NullFloat64{Float64: eyes.Left.X, Valid: true},
		sql.NullFloat64{Float64: eyes.Left.Y, Valid: true},
		sql.NullFloat64{Float64: eyes.Right.X, Valid: true},
		sql.NullFloat64{Float64: eyes.Right.Y, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
