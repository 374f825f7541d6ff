package models

import "time"

// GapImpact grades how severely an open checklist item holds an application back.
type GapImpact string

const (
	ImpactCritical GapImpact = "Critical"
	ImpactHigh     GapImpact = "High"
	ImpactMedium   GapImpact = "Medium"
)

// Gap describes a checklist item the student has not satisfied yet.
type Gap struct {
	Area        string    `json:"area"`
	Impact      GapImpact `json:"impact"`
	Description string    `json:"description"`
}

// ActionStep is a recommended next action derived from an open gap.
type ActionStep struct {
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"`
	Priority  string `json:"priority"`
}

// MatchResult is the derived compatibility verdict for one university. It is
// computed at read time and never persisted.
type MatchResult struct {
	UniversityID     string       `json:"university_id"`
	UniversityName   string       `json:"university_name"`
	Ranking          *int         `json:"ranking,omitempty"`
	MatchScore       int          `json:"match_score"`
	MatchLevel       string       `json:"match_level"`
	MatchColor       string       `json:"match_color"`
	Gaps             []Gap        `json:"gaps"`
	Strengths        []string     `json:"strengths"`
	ActionSteps      []ActionStep `json:"action_steps"`
	EstimatedToReady string       `json:"estimated_time_to_ready"`
}

// ProfileStrength summarises overall completion across the fixed seven-section
// profile enumeration. Note the denominator deliberately differs from the
// six-item checklist used for per-university scores.
type ProfileStrength struct {
	Percent           int                `json:"percent"`
	CompletedSections int                `json:"completed_sections"`
	TotalSections     int                `json:"total_sections"`
	Sections          map[SectionID]bool `json:"sections"`
}

// DashboardSummary is the per-student overview payload.
type DashboardSummary struct {
	ProfileStrength    ProfileStrength     `json:"profile_strength"`
	ApplicationCounts  []StatusCount       `json:"application_counts"`
	RecentApplications []ApplicationDetail `json:"recent_applications"`
	GeneratedAt        time.Time           `json:"generated_at"`
}
