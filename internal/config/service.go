package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ServiceFile mirrors the keys of a reguctl service config file. The
// zero value means "keep the default"; overlay logic lives with the
// binary that loads it.
type ServiceFile struct {
	Name            string   `toml:"name"`
	ListenAddr      string   `toml:"listen_addr"`
	AdminAddr       string   `toml:"admin_addr"`
	AdminToken      string   `toml:"admin_token"`
	Installation    string   `toml:"installation"`
	JournalPath     string   `toml:"journal_path"`
	StrictChecksum  bool     `toml:"strict_checksum"`
	CORSOrigins     []string `toml:"cors_origins"`
	WriteTimeoutSec int      `toml:"write_timeout_seconds"`
}

// ValidateServiceFile decodes a service config strictly, rejecting
// unknown keys so typos surface before deployment.
func ValidateServiceFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw ServiceFile
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
