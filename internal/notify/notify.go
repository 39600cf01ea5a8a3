// Package notify delivers sync run summaries to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Optional run reference
	At      time.Time
	Fields  []Field
}

// Field is a named figure shown next to the message by sinks that
// support it
type Field struct {
	Name  string
	Value string
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// FromRun builds the notification announcing a finished pass
func FromRun(r domain.RunResult) Notification {
	t := r.Totals()
	n := Notification{
		Title:   "Sync completed",
		Message: r.Notes(),
		RunID:   r.RunID,
		At:      r.StartedAt,
		Fields: []Field{
			{"Projects", strconv.Itoa(r.MappedProjects)},
			{"Created", strconv.Itoa(t.Created)},
			{"Updated", strconv.Itoa(t.Updated)},
			{"Conflicts", strconv.Itoa(r.Conflicts)},
		},
	}
	if len(r.Errors) > 0 {
		n.Fields = append(n.Fields, Field{"Errors", strconv.Itoa(len(r.Errors))})
	}
	switch r.Outcome() {
	case domain.OutcomeError:
		n.Title = fmt.Sprintf("Sync failed in %s", r.FailedPhase)
		n.Type = NotifyError
	case domain.OutcomeWarning:
		n.Title = "Sync completed with errors"
		n.Type = NotifyWarning
	default:
		if r.Totals().Changed() {
			n.Type = NotifySuccess
		}
	}
	return n
}

// Reporter receives the result of every finished pass
type Reporter interface {
	Report(ctx context.Context, r domain.RunResult) error
}

// ReporterFunc adapts a function to the Reporter interface
type ReporterFunc func(ctx context.Context, r domain.RunResult) error

func (f ReporterFunc) Report(ctx context.Context, r domain.RunResult) error { return f(ctx, r) }

// NotifierReporter forwards run summaries to a Notifier
type NotifierReporter struct {
	notifier Notifier
	quiet    bool
}

// NewNotifierReporter creates a reporter for n. A quiet reporter skips
// passes that changed nothing and had no errors.
func NewNotifierReporter(n Notifier, quiet bool) *NotifierReporter {
	return &NotifierReporter{notifier: n, quiet: quiet}
}

// Report sends the run summary
func (nr *NotifierReporter) Report(_ context.Context, r domain.RunResult) error {
	if nr.quiet && r.Outcome() == domain.OutcomeSuccess && !r.Totals().Changed() && r.Conflicts == 0 {
		return nil
	}
	return nr.notifier.Send(FromRun(r))
}

// Fanout reports to every sink. A failing sink does not stop the others.
type Fanout struct {
	reporters []Reporter
}

// NewFanout creates a Fanout over reporters
func NewFanout(reporters ...Reporter) *Fanout {
	return &Fanout{reporters: reporters}
}

// Add appends a sink
func (f *Fanout) Add(r Reporter) {
	f.reporters = append(f.reporters, r)
}

// Report delivers r to every sink in order and returns the sink
// failures joined
func (f *Fanout) Report(ctx context.Context, r domain.RunResult) error {
	var errs []error
	for _, rep := range f.reporters {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
