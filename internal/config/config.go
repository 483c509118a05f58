package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is looked up in the working directory when --config is not
// given.
const DefaultFile = "cptest.toml"

// FileConfig mirrors the optional cptest.toml defaults file. Every field
// is optional; explicitly-set command line flags always win over it.
type FileConfig struct {
	CompileCommand string `toml:"compile_command"`
	Timeout        int    `toml:"timeout"`
	CompileTimeout int    `toml:"compile_timeout"`
	InExt          string `toml:"in_ext"`
	OutExt         string `toml:"out_ext"`
	Sio2jailPath   string `toml:"sio2jail_path"`
}

// Load reads the config file at path. When path is empty the default file
// is tried and a missing file is not an error.
func Load(path string) (*FileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
