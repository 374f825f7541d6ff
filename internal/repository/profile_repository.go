package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unipath/unipath-api/internal/models"
)

// ProfileRepository manages persistence for profile sections.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ListByStudent returns all stored sections for a student.
func (r *ProfileRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProfileSection, error) {
	const query = `SELECT id, student_id, section_id, completed, data, updated_at FROM profile_sections WHERE student_id = $1 ORDER BY section_id`
	var sections []models.ProfileSection
	if err := r.db.SelectContext(ctx, &sections, query, studentID); err != nil {
		return nil, fmt.Errorf("list profile sections: %w", err)
	}
	return sections, nil
}

// FindSection fetches one section by its (student, section) pair.
func (r *ProfileRepository) FindSection(ctx context.Context, studentID string, sectionID models.SectionID) (*models.ProfileSection, error) {
	const query = `SELECT id, student_id, section_id, completed, data, updated_at FROM profile_sections WHERE student_id = $1 AND section_id = $2 LIMIT 1`
	var section models.ProfileSection
	if err := r.db.GetContext(ctx, &section, query, studentID, sectionID); err != nil {
		return nil, err
	}
	return &section, nil
}

// Upsert inserts or replaces a section. The unique (student_id, section_id)
// constraint keeps at most one row per pair.
func (r *ProfileRepository) Upsert(ctx context.Context, section *models.ProfileSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	section.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO profile_sections (id, student_id, section_id, completed, data, updated_at)
        VALUES (:id, :student_id, :section_id, :completed, :data, :updated_at)
        ON CONFLICT (student_id, section_id)
        DO UPDATE SET completed = EXCLUDED.completed, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("upsert profile section: %w", err)
	}
	return nil
}

// SetCompleted flips only the completion flag of a section.
func (r *ProfileRepository) SetCompleted(ctx context.Context, studentID string, sectionID models.SectionID, completed bool, updatedAt time.Time) error {
	const query = `UPDATE profile_sections SET completed = $3, updated_at = $4 WHERE student_id = $1 AND section_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, sectionID, completed, updatedAt)
	if err != nil {
		return fmt.Errorf("set section completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set section completed: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a section for a student.
func (r *ProfileRepository) Delete(ctx context.Context, studentID string, sectionID models.SectionID) error {
	const query = `DELETE FROM profile_sections WHERE student_id = $1 AND section_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, sectionID)
	if err != nil {
		return fmt.Errorf("delete profile section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile section: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasReferences reports whether the student flagged reference letters as
// arranged. The flag lives in its own row because the checklist item has no
// profile section of its own.
func (r *ProfileRepository) HasReferences(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT references_ready FROM student_flags WHERE student_id = $1 LIMIT 1`
	var ready bool
	if err := r.db.GetContext(ctx, &ready, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check references flag: %w", err)
	}
	return ready, nil
}

// SetReferences stores the reference-letters flag for a student.
func (r *ProfileRepository) SetReferences(ctx context.Context, studentID string, ready bool, updatedAt time.Time) error {
	const query = `INSERT INTO student_flags (student_id, references_ready, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (student_id)
        DO UPDATE SET references_ready = EXCLUDED.references_ready, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, studentID, ready, updatedAt); err != nil {
		return fmt.Errorf("set references flag: %w", err)
	}
	return nil
}
