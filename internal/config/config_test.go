package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Schedule.ActiveStartHour != 6 || cfg.Schedule.ActiveEndHour != 23 {
		t.Errorf("active window = %d-%d, want 6-23", cfg.Schedule.ActiveStartHour, cfg.Schedule.ActiveEndHour)
	}
	if cfg.Schedule.ActiveInterval.Duration != 15*time.Minute {
		t.Errorf("ActiveInterval = %v, want 15m", cfg.Schedule.ActiveInterval)
	}
	if cfg.Schedule.OffInterval.Duration != 2*time.Hour {
		t.Errorf("OffInterval = %v, want 2h", cfg.Schedule.OffInterval)
	}
	if cfg.Sync.Timezone != "Asia/Bangkok" {
		t.Errorf("Timezone = %q, want Asia/Bangkok", cfg.Sync.Timezone)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want 127.0.0.1", cfg.Web.Host)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[craft]
space_id = "space-1"
token = "craft-token"
projects_folder = "folder-projects"

[motion]
api_key = "motion-key"
projects_workspace = "ws-projects"

[sync]
area_labels = ["Health", "Home"]

[schedule]
active_interval = "10m"
off_interval = "1h"
cron = ["CRON_TZ=Asia/Bangkok 0 7 * * *"]

[storage]
backend = "mongo"
mongo_uri = "mongodb://localhost:27017"

[web]
port = 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Craft.SpaceID != "space-1" {
		t.Errorf("SpaceID = %q, want space-1", cfg.Craft.SpaceID)
	}
	if cfg.Motion.ProjectsWorkspace != "ws-projects" {
		t.Errorf("ProjectsWorkspace = %q", cfg.Motion.ProjectsWorkspace)
	}
	if len(cfg.Sync.AreaLabels) != 2 {
		t.Errorf("AreaLabels = %v", cfg.Sync.AreaLabels)
	}
	if cfg.Schedule.ActiveInterval.Duration != 10*time.Minute {
		t.Errorf("ActiveInterval = %v, want 10m", cfg.Schedule.ActiveInterval)
	}
	if len(cfg.Schedule.Cron) != 1 {
		t.Errorf("Cron = %v", cfg.Schedule.Cron)
	}
	if cfg.Storage.Backend != BackendMongo {
		t.Errorf("Backend = %q, want mongo", cfg.Storage.Backend)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
	// untouched defaults survive
	if cfg.Craft.TokenEnv != "CRAFT_API_TOKEN" {
		t.Errorf("TokenEnv = %q, want CRAFT_API_TOKEN", cfg.Craft.TokenEnv)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("MOTION_API_KEY", "env-motion")
	t.Setenv("CRAFT_API_TOKEN", "env-craft")
	t.Setenv("CRAFT_SPACE_ID", "env-space")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Motion.APIKey != "env-motion" {
		t.Errorf("APIKey = %q, want env-motion", cfg.Motion.APIKey)
	}
	if cfg.Craft.Token != "env-craft" {
		t.Errorf("Token = %q, want env-craft", cfg.Craft.Token)
	}
	if cfg.Craft.SpaceID != "env-space" {
		t.Errorf("SpaceID = %q, want env-space", cfg.Craft.SpaceID)
	}
}

func TestLoad_FileSecretWinsOverEnv(t *testing.T) {
	t.Setenv("MOTION_API_KEY", "env-motion")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	os.WriteFile(path, []byte("[motion]\napi_key = \"file-key\"\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Motion.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cfg.Motion.APIKey)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	os.WriteFile(path, []byte("[schedule]\nactive_interval = \"often\"\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("Load should reject an unparseable duration")
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail without credentials")
	}
	if !errors.Is(err, domain.ErrFatalConfig) {
		t.Errorf("error = %v, want ErrFatalConfig", err)
	}
	for _, name := range []string{"craft.space_id", "craft.token", "craft.projects_folder", "motion.api_key", "motion.projects_workspace"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestValidate_BadBackendAndTimezone(t *testing.T) {
	cfg := Default()
	cfg.Craft.SpaceID = "s"
	cfg.Craft.Token = "t"
	cfg.Craft.ProjectsFolder = "f"
	cfg.Motion.APIKey = "k"
	cfg.Motion.ProjectsWorkspace = "w"
	cfg.Storage.Backend = "postgres"
	cfg.Sync.Timezone = "Mars/Olympus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	if !strings.Contains(err.Error(), "postgres") || !strings.Contains(err.Error(), "sync.timezone") {
		t.Errorf("error = %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
