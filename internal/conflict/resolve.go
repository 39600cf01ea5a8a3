// Package conflict decides which side wins when both changed since the
// last sync.
package conflict

import (
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// Resolve returns the winning side. Remote wins only when both
// timestamps are known and remote is strictly newer; ties and missing
// timestamps go to local.
func Resolve(localUpdatedAt, remoteUpdatedAt *time.Time) domain.Side {
	if localUpdatedAt == nil || remoteUpdatedAt == nil {
		return domain.SideLocal
	}
	if remoteUpdatedAt.After(*localUpdatedAt) {
		return domain.SideRemote
	}
	return domain.SideLocal
}
