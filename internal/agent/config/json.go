package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hyoshida/estatesync/internal/flagx"
	"github.com/hyoshida/estatesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "5m" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerURL     string         `json:"server_url"`
	StoreID       string         `json:"store_id"`
	DatabasePath  string         `json:"database_path"`
	SyncInterval  timex.Duration `json:"sync_interval"`
	RetentionDays int            `json:"retention_days"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies known fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.StoreID = jc.StoreID
	cfg.DatabasePath = jc.DatabasePath
	cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	cfg.RetentionDays = jc.RetentionDays
}
