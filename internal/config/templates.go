package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "service":
		return serviceTemplate, nil
	case "installation":
		return installationTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serviceTemplate = `name = "reguctl"
listen_addr = ":19000"
admin_addr = ":9180"
admin_token = ""
installation = "installation.toml"
journal_path = "reguctl.db"
strict_checksum = false
cors_origins = ["http://localhost:3000"]
`

const installationTemplate = `name = "demo-crossing"

[[groups]]
id = 1
kind = "vehicular"
label = "vehicular_1"

[[groups]]
id = 2
kind = "pedestrian"
label = "pedestrian_1"

[[phases]]
id = 1
colors = ["green", "red"]

[[phases]]
id = 2
colors = ["red", "green"]

[[structures]]
id = 1
phases = [1, 2]

[[plans]]
id = 129
structure = 1
cycle = 60
durations = [23, 23]
starts = ["00:00"]

[plans.transitions.vehicular]
amber = 3
red_clearance = 2

[plans.transitions.pedestrian]
green_blink = 5
red = 2

[detectors]
count = 4
real_time = false
`
