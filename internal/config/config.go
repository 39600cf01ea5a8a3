package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Craft         CraftConfig         `toml:"craft"`
	Motion        MotionConfig        `toml:"motion"`
	Sync          SyncConfig          `toml:"sync"`
	Schedule      ScheduleConfig      `toml:"schedule"`
	Storage       StorageConfig       `toml:"storage"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	// TriggerFile forces a pass whenever it is written
	TriggerFile string `toml:"trigger_file"`
	LogPrefix   string `toml:"log_prefix"`
}

// CraftConfig holds Craft API settings
type CraftConfig struct {
	BaseURL  string `toml:"base_url"`
	SpaceID  string `toml:"space_id"`
	Token    string `toml:"token"`
	TokenEnv string `toml:"token_env"`
	SpaceEnv string `toml:"space_id_env"`

	// Folder ids
	ProjectsFolder string `toml:"projects_folder"`
	AreasFolder    string `toml:"areas_folder"`
	// InboxDocument replaces the space inbox as the fallback bucket
	InboxDocument string `toml:"inbox_document"`

	// Collection block ids
	MappingsCollection      string `toml:"mappings_collection"`
	NotificationsCollection string `toml:"notifications_collection"`
}

// MotionConfig holds Motion API settings
type MotionConfig struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	APIKeyEnv         string `toml:"api_key_env"`
	ProjectsWorkspace string `toml:"projects_workspace"`
	AreasWorkspace    string `toml:"areas_workspace"`
	TaskDuration      int    `toml:"task_duration"`
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	// AreaLabels restricts which area documents take part, empty means all
	AreaLabels      []string `toml:"area_labels"`
	CreateCompleted bool     `toml:"create_completed"`
	Timezone        string   `toml:"timezone"`
}

// ScheduleConfig holds the pass cadence
type ScheduleConfig struct {
	ActiveStartHour int      `toml:"active_start_hour"`
	ActiveEndHour   int      `toml:"active_end_hour"`
	ActiveInterval  Duration `toml:"active_interval"`
	OffInterval     Duration `toml:"off_interval"`
	// Cron replaces the two-band cadence when set
	Cron       []string `toml:"cron"`
	RunOnStart bool     `toml:"run_on_start"`
}

// StorageConfig selects the mapping backend
type StorageConfig struct {
	Backend       string `toml:"backend"`
	DatabasePath  string `toml:"database_path"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
	Craft        bool   `toml:"craft"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Host    string `toml:"host"`
}

// Duration is a time.Duration that reads from TOML strings like "15m"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendCraft  = "craft"
)

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			LogPrefix: "[tasklink] ",
		},
		Craft: CraftConfig{
			BaseURL:  "https://api.craft.do/v1",
			TokenEnv: "CRAFT_API_TOKEN",
			SpaceEnv: "CRAFT_SPACE_ID",
		},
		Motion: MotionConfig{
			BaseURL:      "https://api.usemotion.com/v1",
			APIKeyEnv:    "MOTION_API_KEY",
			TaskDuration: 15,
		},
		Sync: SyncConfig{
			Timezone: "Asia/Bangkok",
		},
		Schedule: ScheduleConfig{
			ActiveStartHour: 6,
			ActiveEndHour:   23,
			ActiveInterval:  Duration{15 * time.Minute},
			OffInterval:     Duration{2 * time.Hour},
			RunOnStart:      true,
		},
		Storage: StorageConfig{
			Backend:       BackendSQLite,
			DatabasePath:  filepath.Join(home, ".tasklink", "tasklink.db"),
			MongoDatabase: "tasklink",
		},
		Notifications: NotificationsConfig{
			Desktop: false,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
			Host:    "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// Secrets left empty in the file are taken from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Expand paths
	cfg.General.TriggerFile = ExpandPath(cfg.General.TriggerFile)
	cfg.Storage.DatabasePath = ExpandPath(cfg.Storage.DatabasePath)

	cfg.resolveSecrets()
	return cfg, nil
}

func (c *Config) resolveSecrets() {
	if c.Craft.Token == "" && c.Craft.TokenEnv != "" {
		c.Craft.Token = os.Getenv(c.Craft.TokenEnv)
	}
	if c.Craft.SpaceID == "" && c.Craft.SpaceEnv != "" {
		c.Craft.SpaceID = os.Getenv(c.Craft.SpaceEnv)
	}
	if c.Motion.APIKey == "" && c.Motion.APIKeyEnv != "" {
		c.Motion.APIKey = os.Getenv(c.Motion.APIKeyEnv)
	}
}

// Validate checks the settings a sync pass cannot run without. Every
// problem is reported, each wrapping domain.ErrFatalConfig.
func (c *Config) Validate() error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%w: %s is required", domain.ErrFatalConfig, name))
	}

	if c.Craft.SpaceID == "" {
		missing("craft.space_id")
	}
	if c.Craft.Token == "" {
		missing("craft.token")
	}
	if c.Craft.ProjectsFolder == "" {
		missing("craft.projects_folder")
	}
	if c.Motion.APIKey == "" {
		missing("motion.api_key")
	}
	if c.Motion.ProjectsWorkspace == "" {
		missing("motion.projects_workspace")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("%w: sync.timezone: %v", domain.ErrFatalConfig, err))
	}

	s := c.Schedule
	if len(s.Cron) == 0 {
		if s.ActiveStartHour < 0 || s.ActiveStartHour > 23 || s.ActiveEndHour < 0 || s.ActiveEndHour > 24 {
			errs = append(errs, fmt.Errorf("%w: schedule hours must be within 0-24", domain.ErrFatalConfig))
		}
		if s.ActiveInterval.Duration <= 0 || s.OffInterval.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%w: schedule intervals must be positive", domain.ErrFatalConfig))
		}
	}

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.DatabasePath == "" {
			missing("storage.database_path")
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			missing("storage.mongo_uri")
		}
	case BackendCraft:
		if c.Craft.MappingsCollection == "" {
			missing("craft.mappings_collection")
		}
		if c.Storage.DatabasePath == "" {
			missing("storage.database_path")
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown storage.backend %q", domain.ErrFatalConfig, c.Storage.Backend))
	}

	if c.Notifications.Craft && c.Craft.NotificationsCollection == "" {
		missing("craft.notifications_collection")
	}

	return errors.Join(errs...)
}

// Location returns the configured sync timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Sync.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Sync.Timezone)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasklink", "config.toml")
}
