package models

import "time"

// ProgramLevel enumerates the degree levels offered by a program.
type ProgramLevel string

const (
	LevelBachelor ProgramLevel = "bachelor"
	LevelMaster   ProgramLevel = "master"
	LevelPhD      ProgramLevel = "phd"
)

// ValidProgramLevel reports whether the level is a known degree level.
func ValidProgramLevel(l ProgramLevel) bool {
	switch l {
	case LevelBachelor, LevelMaster, LevelPhD:
		return true
	}
	return false
}

// University represents an institution in the catalog. Ranking is optional,
// lower values rank better.
type University struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Location    string    `db:"location" json:"location"`
	Country     string    `db:"country" json:"country"`
	Ranking     *int      `db:"ranking" json:"ranking,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Program belongs to exactly one university. Duration and fee are display
// strings, not parsed values.
type Program struct {
	ID           string       `db:"id" json:"id"`
	UniversityID string       `db:"university_id" json:"university_id"`
	Name         string       `db:"name" json:"name"`
	Level        ProgramLevel `db:"level" json:"level"`
	Duration     string       `db:"duration" json:"duration"`
	Fee          string       `db:"fee" json:"fee"`
	Description  string       `db:"description" json:"description"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// ProgramDetail carries a program joined with its parent university. The
// university columns are nullable so reads survive a missing parent.
type ProgramDetail struct {
	Program
	UniversityName    *string `db:"university_name" json:"university_name,omitempty"`
	UniversityCountry *string `db:"university_country" json:"university_country,omitempty"`
}

// UniversityDetail bundles a university with its programs.
type UniversityDetail struct {
	University
	Programs []Program `json:"programs"`
}

// UniversityFilter captures search criteria for the catalog.
type UniversityFilter struct {
	Search    string
	Country   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ProgramFilter captures list criteria for programs.
type ProgramFilter struct {
	UniversityID string
	Level        *ProgramLevel
	Search       string
	Page         int
	PageSize     int
}
