package models

import "time"

// ApplicationStatus enumerates the lifecycle states of an application.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusAccepted    ApplicationStatus = "accepted"
	StatusRejected    ApplicationStatus = "rejected"
	StatusWithdrawn   ApplicationStatus = "withdrawn"
)

// statusTransitions lists the legal edges of the lifecycle graph.
// accepted, rejected and withdrawn are terminal.
var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:       {StatusSubmitted, StatusWithdrawn},
	StatusSubmitted:   {StatusUnderReview, StatusWithdrawn},
	StatusUnderReview: {StatusAccepted, StatusRejected},
	StatusAccepted:    {},
	StatusRejected:    {},
	StatusWithdrawn:   {},
}

// ValidStatus reports whether the value is a known lifecycle state.
func ValidStatus(s ApplicationStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether the edge from -> to exists in the lifecycle graph.
func CanTransition(from, to ApplicationStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether no further transitions leave the state.
func TerminalStatus(s ApplicationStatus) bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// Application represents a student's application to a program.
type Application struct {
	ID          string            `db:"id" json:"id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	ProgramID   string            `db:"program_id" json:"program_id"`
	Status      ApplicationStatus `db:"status" json:"status"`
	Notes       string            `db:"notes" json:"notes"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
	SubmittedAt *time.Time        `db:"submitted_at" json:"submitted_at,omitempty"`
}

// ApplicationDetail carries the application with program and university context.
type ApplicationDetail struct {
	Application
	ProgramName    *string `db:"program_name" json:"program_name,omitempty"`
	ProgramLevel   *string `db:"program_level" json:"program_level,omitempty"`
	UniversityID   *string `db:"university_id" json:"university_id,omitempty"`
	UniversityName *string `db:"university_name" json:"university_name,omitempty"`
}

// ApplicationFilter captures list criteria for applications.
type ApplicationFilter struct {
	StudentID string
	Status    *ApplicationStatus
	Page      int
	PageSize  int
}

// StatusCount aggregates applications per lifecycle state.
type StatusCount struct {
	Status ApplicationStatus `db:"status" json:"status"`
	Count  int               `db:"count" json:"count"`
}
