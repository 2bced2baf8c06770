package models

import (
	"fmt"
	"time"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
)

// Column limits of the notification table
const (
	MaxAlertTitleLength  = 200
	MaxAlertDetailLength = 500
)

// Alert is a persisted notification row
type Alert struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Severity  Severity  `json:"severity" db:"severity"`
	Title     string    `json:"title" db:"title"`
	Detail    *string   `json:"detail" db:"detail"`
	Seen      bool      `json:"seen" db:"seen"`
}

// TableName returns the table name for the Alert model
func (Alert) TableName() string {
	return "notification"
}

// DetailText returns the detail or an empty string when absent
func (a *Alert) DetailText() string {
	if a.Detail == nil {
		return ""
	}
	return *a.Detail
}

// CandidateAlert is an alert proposed by a rule before deduplication.
// Two candidates are duplicates when severity, title and detail all match.
type CandidateAlert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   *string  `json:"detail"`
}

// NewCandidateAlert creates a candidate with a detail line
func NewCandidateAlert(severity Severity, title, detail string) CandidateAlert {
	return CandidateAlert{Severity: severity, Title: title, Detail: &detail}
}

// Key renders the dedup key for logs
func (c CandidateAlert) Key() string {
	detail := "<nil>"
	if c.Detail != nil {
		detail = *c.Detail
	}
	return fmt.Sprintf("%s|%s|%s", c.Severity, c.Title, detail)
}

// SameKey reports whether a persisted alert carries this candidate's key
func (c CandidateAlert) SameKey(a *Alert) bool {
	if c.Severity != a.Severity || c.Title != a.Title {
		return false
	}
	if c.Detail == nil || a.Detail == nil {
		return c.Detail == nil && a.Detail == nil
	}
	return *c.Detail == *a.Detail
}
