// Package config holds the typed application configuration plus the
// user-defined context definitions stored alongside the task data.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Backend names accepted by the backend setting.
const (
	BackendReplica = "replica"
	BackendFile    = "file"
)

// Config holds typed configuration for the task store.
type Config struct {
	DataDir   string
	Backend   string
	TaskFile  string
	StorePath string
	LogFile   string
	Context   string
}

// SetDefaults registers the default values on a viper instance. Called
// before ReadInConfig so a missing config file still yields a working
// setup rooted at ~/.taskdb.
func SetDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".taskdb")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("backend", BackendReplica)
	v.SetDefault("task_file", "")
	v.SetDefault("store_path", "")
	v.SetDefault("log_file", "")
	v.SetDefault("context", "")
}

// Load reads all values from the given viper instance and resolves the
// derived paths: file locations default to living under data_dir.
func Load(v *viper.Viper) Config {
	cfg := Config{
		DataDir:   v.GetString("data_dir"),
		Backend:   v.GetString("backend"),
		TaskFile:  v.GetString("task_file"),
		StorePath: v.GetString("store_path"),
		LogFile:   v.GetString("log_file"),
		Context:   v.GetString("context"),
	}
	if cfg.TaskFile == "" {
		cfg.TaskFile = filepath.Join(cfg.DataDir, "tasks.json")
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.DataDir, "tasks.db")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "taskdb.log")
	}
	return cfg
}

// ContextsPath returns the location of the context definitions file.
func (c Config) ContextsPath() string {
	return filepath.Join(c.DataDir, "contexts.yaml")
}
