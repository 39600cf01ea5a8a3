package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestRunResult_Outcome(t *testing.T) {
	tests := []struct {
		name   string
		result RunResult
		want   Outcome
	}{
		{"clean", RunResult{}, OutcomeSuccess},
		{"entity errors", RunResult{Errors: []EntityError{{Entity: "x"}}}, OutcomeWarning},
		{"aborted", RunResult{Failure: "boom", Errors: []EntityError{{Entity: "x"}}}, OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Outcome(); got != tt.want {
				t.Errorf("Outcome() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunResult_Notes(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	r := RunResult{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Tasks:      Counts{Created: 2, Updated: 1},
		Conflicts:  1,
	}

	notes := r.Notes()
	for _, want := range []string{"Created 2", "Updated 1", "Resolved 1 conflicts", "Duration: 1.50s"} {
		if !strings.Contains(notes, want) {
			t.Errorf("Notes() = %q, missing %q", notes, want)
		}
	}

	idle := RunResult{StartedAt: start, FinishedAt: start}
	if !strings.Contains(idle.Notes(), "No changes needed") {
		t.Errorf("idle Notes() = %q", idle.Notes())
	}

	failed := RunResult{Failure: "mapping store unwritable"}
	if got := failed.Notes(); got != "Error: mapping store unwritable" {
		t.Errorf("failed Notes() = %q", got)
	}
}

func TestRunResult_Totals(t *testing.T) {
	r := RunResult{
		Projects: Counts{Created: 1, Linked: 2},
		Tasks:    Counts{Created: 3, Updated: 4, Skipped: 5},
	}
	r.CountsFor(TypeTask).Linked++

	got := r.Totals()
	want := Counts{Created: 4, Updated: 4, Linked: 3, Skipped: 5}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("GET /tasks: %w", ErrTransientIO), KindTransientIO},
		{fmt.Errorf("task 7: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("%w: no title", ErrValidation), KindValidation},
		{fmt.Errorf("%w: motion.api_key", ErrFatalConfig), KindFatalConfig},
		{ErrDuplicateMapping, KindDuplicate},
		{errors.New("something else"), KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewRunID_Unique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("run ids should differ")
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{404, ErrNotFound},
		{429, ErrTransientIO},
		{500, ErrTransientIO},
		{503, ErrTransientIO},
		{400, ErrValidation},
		{422, ErrValidation},
	}

	for _, tt := range tests {
		err := StatusError("GET /tasks", tt.code, []byte("nope"))
		if !errors.Is(err, tt.want) {
			t.Errorf("StatusError(%d) = %v, want %v", tt.code, err, tt.want)
		}
	}

	if err := TransportError("GET /tasks", errors.New("dial tcp: refused")); !errors.Is(err, ErrTransientIO) {
		t.Errorf("TransportError = %v, want ErrTransientIO", err)
	}
}

func TestStatusError_TrimsLongBodyOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes put the 200-byte cut inside the two-byte "ü"
	body := strings.Repeat("x", 199) + strings.Repeat("ü", 10)

	err := StatusError("PATCH /tasks", 400, []byte(body))

	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Errorf("message is not valid UTF-8: %q", msg)
	}
	if strings.Contains(msg, "ü") {
		t.Errorf("message should stop before the split rune: %q", msg)
	}
	if !strings.Contains(msg, strings.Repeat("x", 199)) {
		t.Errorf("message lost the leading text: %q", msg)
	}
}
