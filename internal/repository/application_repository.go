package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unipath/unipath-api/internal/models"
)

// ApplicationRepository manages persistence for application records.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationDetailColumns = `a.id, a.student_id, a.program_id, a.status, a.notes, a.created_at, a.updated_at, a.submitted_at,
        p.name AS program_name, p.level AS program_level, u.id AS university_id, u.name AS university_name`

// FindByID fetches an application with program and university context.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM applications a
        LEFT JOIN programs p ON p.id = a.program_id
        LEFT JOIN universities u ON u.id = p.university_id
        WHERE a.id = $1`, applicationDetailColumns)
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns applications matching the provided filter with total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
        LEFT JOIN programs p ON p.id = a.program_id
        LEFT JOIN universities u ON u.id = p.university_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d", applicationDetailColumns, base, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// ExistsActive reports whether the student already holds a non-terminal
// application for the program.
func (r *ApplicationRepository) ExistsActive(ctx context.Context, studentID, programID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE student_id = $1 AND program_id = $2 AND status IN ($3, $4, $5) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, programID, models.StatusDraft, models.StatusSubmitted, models.StatusUnderReview)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active application: %w", err)
	}
	return true, nil
}

// Create inserts a new application in draft state.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO applications (id, student_id, program_id, status, notes, created_at, updated_at, submitted_at)
        VALUES (:id, :student_id, :program_id, :status, :notes, :created_at, :updated_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus moves an application to the target status. The guard on the
// current status keeps concurrent transitions from both succeeding; callers
// get sql.ErrNoRows when another writer won the race or the row is gone.
// Moving into submitted stamps submitted_at in the same statement; the
// COALESCE leaves an existing stamp untouched, so the first submission
// wins. One statement means a failed transition never leaves a
// half-written row behind.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, updatedAt time.Time) error {
	query := `UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	if to == models.StatusSubmitted {
		query = `UPDATE applications SET status = $3, updated_at = $4, submitted_at = COALESCE(submitted_at, $4) WHERE id = $1 AND status = $2`
	}
	res, err := r.db.ExecContext(ctx, query, id, from, to, updatedAt)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateNotes replaces the free-form notes on an application.
func (r *ApplicationRepository) UpdateNotes(ctx context.Context, id, notes string, updatedAt time.Time) error {
	const query = `UPDATE applications SET notes = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes, updatedAt); err != nil {
		return fmt.Errorf("update application notes: %w", err)
	}
	return nil
}

// Delete removes an application permanently.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM applications WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus aggregates a student's applications per lifecycle state.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM applications WHERE student_id = $1 GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, studentID); err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	return counts, nil
}
