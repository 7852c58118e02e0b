// Package main is the metaview console: a schema-driven client for
// UI-compiling ERP backends. Every view and operation comes from the
// server-supplied schema; no entity is known at build time.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"metaview/pkg/logger"
)

func main() {
	// .env is optional; environment wins.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "warn"),
		Development: getEnv("APP_ENV", "development") == "development",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	root := newRootCommand(log)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func defaultStatePath() string {
	if p := os.Getenv("METAVIEW_STATE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".metaview.db"
	}
	return filepath.Join(home, ".metaview", "state.db")
}
