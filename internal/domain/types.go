package domain

// EntityType discriminates the kinds of records that are correlated
type EntityType string

const (
	TypeProject EntityType = "project"
	TypeTask    EntityType = "task"
)

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	return t == TypeProject || t == TypeTask
}

// ParseEntityType converts a string to an EntityType
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(s)
	return t, t.Valid()
}

// LocalStatus is the task state vocabulary of the local service
type LocalStatus string

const (
	LocalTodo     LocalStatus = "todo"
	LocalDone     LocalStatus = "done"
	LocalCanceled LocalStatus = "canceled"
)

// Closed reports whether the status no longer needs work
func (s LocalStatus) Closed() bool {
	return s == LocalDone || s == LocalCanceled
}

// Remote display status names
const (
	RemoteTodo      = "Todo"
	RemoteCompleted = "Completed"
	RemoteCanceled  = "Canceled"
)

// Side identifies one of the two reconciled services
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Phase is a state of the sync pass state machine
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseProjects Phase = "projects"
	PhaseTasks    Phase = "tasks"
	PhaseAreas    Phase = "areas"
	PhasePersist  Phase = "persist"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)
