package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/server"
)

// loadServiceConfig overlays file values onto the defaults. Keys absent
// from the file keep their default values. The returned string is the
// installation path, resolved relative to the config file directory.
func loadServiceConfig(path string) (server.ServiceConfig, string, error) {
	cfg := server.DefaultServiceConfig()

	var raw config.ServiceFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.ServiceConfig{}, "", fmt.Errorf("load service config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("journal_path") {
		cfg.JournalPath = strings.TrimSpace(raw.JournalPath)
	}
	if meta.IsDefined("strict_checksum") {
		cfg.StrictChecksum = raw.StrictChecksum
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("write_timeout_seconds") {
		cfg.WriteTimeout = time.Duration(raw.WriteTimeoutSec) * time.Second
	}

	instPath := strings.TrimSpace(raw.Installation)
	if instPath != "" && !filepath.IsAbs(instPath) {
		instPath = filepath.Join(filepath.Dir(path), instPath)
	}
	return cfg, instPath, nil
}

// loadRuntime resolves service and installation settings from the flag
// values. An empty config path runs on defaults and an empty
// installation path runs the built-in demo crossing.
func loadRuntime(configPath, installationOverride string) (server.ServiceConfig, config.Installation, error) {
	cfg := server.DefaultServiceConfig()
	instPath := ""

	if strings.TrimSpace(configPath) != "" {
		var err error
		cfg, instPath, err = loadServiceConfig(configPath)
		if err != nil {
			return server.ServiceConfig{}, config.Installation{}, err
		}
	}
	if strings.TrimSpace(installationOverride) != "" {
		instPath = strings.TrimSpace(installationOverride)
	}
	if instPath == "" {
		return cfg, config.DefaultInstallation(), nil
	}
	inst, err := config.LoadInstallation(instPath)
	if err != nil {
		return server.ServiceConfig{}, config.Installation{}, err
	}
	return cfg, inst, nil
}
