// Package translate converts statuses and fields between the Craft and
// Motion vocabularies. Every function is pure and total.
package translate

import (
	"strings"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// RemoteStatus is the Motion representation of a Craft task state
type RemoteStatus struct {
	Completed     bool
	DisplayStatus string
}

var localToRemote = map[domain.LocalStatus]RemoteStatus{
	domain.LocalTodo:     {Completed: false, DisplayStatus: domain.RemoteTodo},
	domain.LocalDone:     {Completed: true, DisplayStatus: domain.RemoteCompleted},
	domain.LocalCanceled: {Completed: false, DisplayStatus: domain.RemoteCanceled},
}

// LocalStatusToRemote maps a Craft task state to Motion. Unknown states
// fall back to the todo row.
func LocalStatusToRemote(status string) RemoteStatus {
	if rs, ok := localToRemote[domain.LocalStatus(strings.ToLower(strings.TrimSpace(status)))]; ok {
		return rs
	}
	return localToRemote[domain.LocalTodo]
}

// RemoteStatusToLocal maps a Motion task to a Craft task state. The
// completed flag wins over any display label.
func RemoteStatusToLocal(e domain.SyncEntity) domain.LocalStatus {
	if e.Completed {
		return domain.LocalDone
	}
	switch {
	case strings.EqualFold(e.Status, domain.RemoteCompleted):
		return domain.LocalDone
	case strings.EqualFold(e.Status, domain.RemoteCanceled):
		return domain.LocalCanceled
	default:
		return domain.LocalTodo
	}
}

// LocalStatusOf normalizes the status of a Craft entity
func LocalStatusOf(e domain.SyncEntity) domain.LocalStatus {
	s := domain.LocalStatus(strings.ToLower(strings.TrimSpace(e.Status)))
	switch s {
	case domain.LocalDone, domain.LocalCanceled:
		return s
	default:
		return domain.LocalTodo
	}
}

// StatusEqual reports whether a Craft and a Motion entity agree on state
func StatusEqual(local, remote domain.SyncEntity) bool {
	return LocalStatusOf(local) == RemoteStatusToLocal(remote)
}

// TitleEqual reports whether two entities carry the same title, ignoring
// surrounding whitespace
func TitleEqual(a, b domain.SyncEntity) bool {
	return strings.TrimSpace(a.Title) == strings.TrimSpace(b.Title)
}

// ScheduleEqual reports whether two entities share start and due dates
func ScheduleEqual(a, b domain.SyncEntity) bool {
	return a.StartDate == b.StartDate && a.DueDate == b.DueDate
}

// IsClosed reports whether the entity is done or canceled on its side
func IsClosed(e domain.SyncEntity, side domain.Side) bool {
	if side == domain.SideRemote {
		return RemoteStatusToLocal(e).Closed()
	}
	return LocalStatusOf(e).Closed()
}
