package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// config holds the optional settings from the user configuration file.
type config struct {
	// Creator overrides the creator attribute of GPX output. The
	// GGVTOGPX_CREATOR environment variable takes precedence.
	Creator string `yaml:"creator"`
	// Debug sets the default debug level, used when -D is not given.
	Debug int `yaml:"debug"`
}

// loadConfig reads config.yaml from the ggvtogpx directory under the
// user configuration directory. A missing file yields the zero config.
func loadConfig() (*config, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return &config{}, nil
	}
	path := filepath.Join(dir, "ggvtogpx", "config.yaml")
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
