package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar day layout used by both services
const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form, empty when unset
type Date string

// ParseDate accepts a calendar day or an RFC 3339 timestamp and
// normalizes it to a Date. Timestamps are converted to loc first.
func ParseDate(s string, loc *time.Location) (Date, error) {
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date(t.Format(DateLayout)), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable date %q", ErrValidation, s)
	}
	if loc != nil {
		t = t.In(loc)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf returns the calendar day of t in loc
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return Date(t.Format(DateLayout))
}

// Time returns the day as midnight UTC
func (d Date) Time() (time.Time, bool) {
	if d == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, string(d))
	return t, err == nil
}

// SyncEntity is a normalized view of a project or task fetched from
// either service. It is rebuilt from live responses every pass.
type SyncEntity struct {
	ID        string
	Title     string
	Status    string
	Completed bool
	StartDate Date
	DueDate   Date
	UpdatedAt *time.Time
	ParentID  string
	Labels    []string
	Recurring bool
}

// Validate rejects entities that cannot be reconciled
func (e SyncEntity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: entity %q has no id", ErrValidation, e.Title)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: entity %s has no title", ErrValidation, e.ID)
	}
	return nil
}

// HasLabel reports whether the entity carries label
func (e SyncEntity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Fields is the payload used to create or update an entity on a service.
// Status uses the target service's vocabulary.
type Fields struct {
	Title     string
	Status    string
	Completed bool
	StartDate Date
	DueDate   Date
	ParentID  string
	Labels    []string

	// Container is the folder or workspace the entity is created in
	Container string

	// SetLabels distinguishes an empty label list from "leave labels alone"
	SetLabels bool
}

// Scope narrows a listing to one container of a service
type Scope struct {
	Container string
	ParentID  string
}
