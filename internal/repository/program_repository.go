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

// ProgramRepository manages persistence for programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs matching the provided filter with total count. The
// university join is a LEFT JOIN so orphaned programs still list.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, int, error) {
	base := "FROM programs p LEFT JOIN universities u ON u.id = p.university_id"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.UniversityID != "" {
		conditions = append(conditions, fmt.Sprintf("p.university_id = $%d", len(args)+1))
		args = append(args, filter.UniversityID)
	}
	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("p.level = $%d", len(args)+1))
		args = append(args, *filter.Level)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(p.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	query := fmt.Sprintf(`SELECT p.id, p.university_id, p.name, p.level, p.duration, p.fee, p.description, p.created_at, p.updated_at,
        u.name AS university_name, u.country AS university_country
        %s ORDER BY p.name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var programs []models.ProgramDetail
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// ListByUniversity returns all programs of one university.
func (r *ProgramRepository) ListByUniversity(ctx context.Context, universityID string) ([]models.Program, error) {
	const query = `SELECT id, university_id, name, level, duration, fee, description, created_at, updated_at
        FROM programs WHERE university_id = $1 ORDER BY name ASC`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, universityID); err != nil {
		return nil, fmt.Errorf("list programs by university: %w", err)
	}
	return programs, nil
}

// FindByID fetches a program with its university context.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.ProgramDetail, error) {
	const query = `SELECT p.id, p.university_id, p.name, p.level, p.duration, p.fee, p.description, p.created_at, p.updated_at,
        u.name AS university_name, u.country AS university_country
        FROM programs p
        LEFT JOIN universities u ON u.id = p.university_id
        WHERE p.id = $1`
	var detail models.ProgramDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, university_id, name, level, duration, fee, description, created_at, updated_at)
        VALUES (:id, :university_id, :name, :level, :duration, :fee, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies an existing program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET name = :name, level = :level, duration = :duration, fee = :fee, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// Delete removes a program.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM programs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
