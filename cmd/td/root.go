package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steveyegge/taskdb/internal/config"
	"github.com/steveyegge/taskdb/internal/storage"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Local task tracking backed by an embedded replica",
	Long: `td is a taskwarrior-style task tracker.

Tasks live in an embedded, operation-logged store (the replica) or in a
plain JSON file, selected by the backend setting. Every mutation is
committed as an atomic operation batch, so partial writes are never
visible and each change is an undoable unit.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.taskdb/taskdb.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default ~/.taskdb)")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: replica or file")
	bindFlag("data_dir", "data-dir")
	bindFlag("backend", "backend")
}

func bindFlag(viperKey, flagName string) {
	if err := viper.BindPFlag(viperKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q -> %q: %v", flagName, viperKey, err))
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.taskdb")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("taskdb")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TASKDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
	}

	cfg = config.Load(viper.GetViper())
	setupLogging()
}

// setupLogging routes the standard logger to a rotated file so daemon
// and replica chatter does not interleave with command output.
func setupLogging() {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return // fall back to stderr logging
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	})
}

// openBackend constructs the configured storage backend, initialized
// and ready for use. Callers must Close it.
func openBackend() (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Backend {
	case config.BackendFile:
		backend = storage.NewFileBackend(cfg.TaskFile)
	case config.BackendReplica:
		b, err := storage.OpenReplicaBackend(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)",
			cfg.Backend, config.BackendReplica, config.BackendFile)
	}
	if err := backend.Initialize(); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return backend, nil
}

// activeContextProject resolves the project constraint of the active
// context, preferring an explicit config override.
func activeContextProject() string {
	cf, err := config.LoadContexts(cfg.ContextsPath())
	if err != nil {
		log.Printf("[td] failed to load contexts: %v", err)
		return ""
	}
	if cfg.Context != "" {
		if ctx, ok := cf.Lookup(cfg.Context); ok {
			return ctx.Project()
		}
	}
	return cf.ActiveProject()
}
