// Package mapstore provides durable backends for the mapping table and
// the sync run history.
package mapstore

import (
	"context"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// RunLog records finished sync passes
type RunLog interface {
	RecordRun(ctx context.Context, r domain.RunResult) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)
}

// Backend persists mappings and run history
type Backend interface {
	ReadAll(ctx context.Context) ([]domain.MappingEntry, error)
	WriteOne(ctx context.Context, e domain.MappingEntry) (string, error)
	RunLog
	Close() error
}

const defaultRunLimit = 50

var (
	_ Backend = (*SQLite)(nil)
	_ Backend = (*MongoRepository)(nil)
)
