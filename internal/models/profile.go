package models

import (
	"encoding/json"
	"time"
)

// SectionID identifies one independently completable block of a student profile.
type SectionID string

const (
	SectionPersonal     SectionID = "personal"
	SectionEducation    SectionID = "education"
	SectionInterests    SectionID = "interests"
	SectionAchievements SectionID = "achievements"
	SectionExperience   SectionID = "experience"
	SectionLanguages    SectionID = "languages"
	SectionStatement    SectionID = "statement"
)

// ProfileSections is the fixed enumeration used for the profile strength
// denominator. Order matters for deterministic output.
var ProfileSections = []SectionID{
	SectionPersonal,
	SectionEducation,
	SectionInterests,
	SectionAchievements,
	SectionExperience,
	SectionLanguages,
	SectionStatement,
}

// ValidSectionID reports whether the id is part of the fixed enumeration.
func ValidSectionID(id SectionID) bool {
	for _, s := range ProfileSections {
		if s == id {
			return true
		}
	}
	return false
}

// ProfileSection stores one section of a student profile. At most one row
// exists per (student_id, section_id) pair. Data is a pointer because the
// column is nullable and a row without a payload is valid state.
type ProfileSection struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SectionID SectionID        `db:"section_id" json:"section_id"`
	Completed bool             `db:"completed" json:"completed"`
	Data      *json.RawMessage `db:"data" json:"data,omitempty"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// PersonalData is the payload variant for the personal section.
type PersonalData struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	DateOfBirth string `json:"date_of_birth"`
	Nationality string `json:"nationality"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

// EducationData is the payload variant for the education section.
type EducationData struct {
	Institution    string  `json:"institution" validate:"required"`
	Degree         string  `json:"degree"`
	FieldOfStudy   string  `json:"field_of_study"`
	GPA            float64 `json:"gpa" validate:"gte=0"`
	GraduationYear int     `json:"graduation_year"`
}

// InterestsData is the payload variant for the interests section.
type InterestsData struct {
	Interests []string `json:"interests" validate:"required,min=1"`
}

// AchievementsData is the payload variant for the achievements section.
type AchievementsData struct {
	Achievements []Achievement `json:"achievements" validate:"required,min=1,dive"`
}

// Achievement is a single award or recognition entry.
type Achievement struct {
	Title       string `json:"title" validate:"required"`
	Year        int    `json:"year"`
	Description string `json:"description"`
}

// ExperienceData is the payload variant for the experience section.
type ExperienceData struct {
	Entries []ExperienceEntry `json:"entries" validate:"required,min=1,dive"`
}

// ExperienceEntry is one job, internship or volunteering record.
type ExperienceEntry struct {
	Organization string `json:"organization" validate:"required"`
	Role         string `json:"role" validate:"required"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Description  string `json:"description"`
}

// LanguagesData is the payload variant for the languages section.
type LanguagesData struct {
	Languages []LanguageSkill `json:"languages" validate:"required,min=1,dive"`
}

// LanguageSkill pairs a language with a proficiency level or test score.
type LanguageSkill struct {
	Language    string `json:"language" validate:"required"`
	Proficiency string `json:"proficiency" validate:"required"`
	TestName    string `json:"test_name"`
	TestScore   string `json:"test_score"`
}

// StatementData is the payload variant for the personal statement section.
type StatementData struct {
	Text string `json:"text" validate:"required,min=50"`
}
