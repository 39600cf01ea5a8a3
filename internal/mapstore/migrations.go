package mapstore

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
    type TEXT NOT NULL,
    local_id TEXT NOT NULL,
    remote_id TEXT NOT NULL,
    record_id TEXT NOT NULL UNIQUE,
    category TEXT,
    title TEXT,
    last_synced_at TIMESTAMP,
    local_updated_at TIMESTAMP,
    remote_updated_at TIMESTAMP,
    PRIMARY KEY (type, local_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_remote ON mappings(type, remote_id);
CREATE INDEX IF NOT EXISTS idx_mappings_category ON mappings(category);

CREATE TABLE IF NOT EXISTS sync_runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    phase TEXT NOT NULL,
    outcome TEXT NOT NULL,
    projects TEXT,
    tasks TEXT,
    conflicts INTEGER DEFAULT 0,
    mapped_projects INTEGER DEFAULT 0,
    errors TEXT,
    failure TEXT,
    failed_phase TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`
