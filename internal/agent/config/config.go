package config

import "time"

// Config holds runtime settings for the sync agent.
//
// Fields:
//   - ServerURL: base URL of the sync authority (scheme://host:port).
//   - StoreID: identifier of the store this agent belongs to.
//   - DatabasePath: SQLite DSN of the local record database.
//   - SyncInterval: how often the background sync pass runs.
//   - RetentionDays: how long synced tombstones are kept before cleanup.
//
// Units: SyncInterval is a time.Duration (e.g., 5*time.Minute).
type Config struct {
	ServerURL     string
	StoreID       string
	DatabasePath  string
	SyncInterval  time.Duration
	RetentionDays int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.StoreID = ""
	c.DatabasePath = "estatesync.db"
	c.SyncInterval = 5 * time.Minute
	c.RetentionDays = 7
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
