package mapstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/tasklink/internal/config"
)

// Open returns the backend selected by cfg. The craft backend keeps its
// run history in SQLite; its mapping rows are served by the craft
// package and combined by the caller.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		client, err := ConnectToMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		repo := NewMongoRepository(NewMongoProvider(client, cfg.MongoDatabase))
		repo.closer = client.Disconnect
		return repo, nil
	case config.BackendSQLite, config.BackendCraft, "":
		if dir := filepath.Dir(cfg.DatabasePath); dir != "" && cfg.DatabasePath != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return NewSQLite(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
