package translate

import "github.com/hochfrequenz/tasklink/internal/domain"

// LocalToRemoteFields builds the Motion payload mirroring a Craft entity
func LocalToRemoteFields(e domain.SyncEntity) domain.Fields {
	rs := LocalStatusToRemote(e.Status)
	return domain.Fields{
		Title:     e.Title,
		Status:    rs.DisplayStatus,
		Completed: rs.Completed,
		StartDate: e.StartDate,
		DueDate:   e.DueDate,
	}
}

// RemoteToLocalFields builds the Craft payload mirroring a Motion entity
func RemoteToLocalFields(e domain.SyncEntity) domain.Fields {
	status := RemoteStatusToLocal(e)
	return domain.Fields{
		Title:     e.Title,
		Status:    string(status),
		Completed: status == domain.LocalDone,
		StartDate: e.StartDate,
		DueDate:   e.DueDate,
	}
}

// FieldsFrom builds the payload that makes the other side match e
func FieldsFrom(e domain.SyncEntity, from domain.Side) domain.Fields {
	if from == domain.SideLocal {
		return LocalToRemoteFields(e)
	}
	return RemoteToLocalFields(e)
}
