package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome summarizes a run for notification sinks
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeWarning Outcome = "Warning"
	OutcomeError   Outcome = "Error"
)

// Counts tallies what a pass did for one entity type
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Linked  int `json:"linked"`
	Skipped int `json:"skipped"`
}

// Changed reports whether anything was written to either service
func (c Counts) Changed() bool {
	return c.Created > 0 || c.Updated > 0 || c.Linked > 0
}

// EntityError records a per-entity failure that did not abort the pass
type EntityError struct {
	Phase   Phase     `json:"phase"`
	Entity  string    `json:"entity"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e EntityError) String() string {
	return fmt.Sprintf("%s: %s - %s", e.Phase, e.Entity, e.Message)
}

// RunResult is the summary of one sync pass
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Phase      Phase
	Projects   Counts
	Tasks      Counts
	Conflicts  int
	Errors     []EntityError

	// MappedProjects is the number of project pairs known after the pass
	MappedProjects int

	// Failure is set when the pass aborted
	Failure     string
	FailedPhase Phase
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Duration returns how long the pass took
func (r RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome classifies the run
func (r RunResult) Outcome() Outcome {
	switch {
	case r.Failure != "":
		return OutcomeError
	case len(r.Errors) > 0:
		return OutcomeWarning
	default:
		return OutcomeSuccess
	}
}

// Totals returns the project and task counts combined
func (r RunResult) Totals() Counts {
	return Counts{
		Created: r.Projects.Created + r.Tasks.Created,
		Updated: r.Projects.Updated + r.Tasks.Updated,
		Linked:  r.Projects.Linked + r.Tasks.Linked,
		Skipped: r.Projects.Skipped + r.Tasks.Skipped,
	}
}

// CountsFor returns a pointer to the counters of entity type t
func (r *RunResult) CountsFor(t EntityType) *Counts {
	if t == TypeProject {
		return &r.Projects
	}
	return &r.Tasks
}

// Notes renders the short human summary used by notification sinks
func (r RunResult) Notes() string {
	if r.Failure != "" {
		return "Error: " + r.Failure
	}

	var notes []string
	t := r.Totals()
	if t.Created > 0 {
		notes = append(notes, fmt.Sprintf("Created %d", t.Created))
	}
	if t.Linked > 0 {
		notes = append(notes, fmt.Sprintf("Linked %d", t.Linked))
	}
	if t.Updated > 0 {
		notes = append(notes, fmt.Sprintf("Updated %d", t.Updated))
	}
	if r.Conflicts > 0 {
		notes = append(notes, fmt.Sprintf("Resolved %d conflicts", r.Conflicts))
	}
	if len(r.Errors) > 0 {
		notes = append(notes, fmt.Sprintf("%d errors occurred", len(r.Errors)))
	}
	if !t.Changed() {
		notes = append(notes, "No changes needed")
	}
	return strings.Join(notes, ". ") + fmt.Sprintf(". Duration: %.2fs", r.Duration().Seconds())
}
