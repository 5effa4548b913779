package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config carries site defaults. Command-line flags override all of it, so a
// missing config file is fine.
type Config struct {
	Source struct {
		Host   string `toml:"host"`
		SSHKey string `toml:"ssh_key"`
		Root   string `toml:"root"`
	} `toml:"source"`
	Destination struct {
		Host   string `toml:"host"`
		SSHKey string `toml:"ssh_key"`
		Root   string `toml:"root"`
	} `toml:"destination"`
	Transfer struct {
		RateLimit   string `toml:"rate_limit"`
		BufferSize  int    `toml:"buffer_size"`
		Cipher      string `toml:"cipher"`
		Compression bool   `toml:"compression"`
		Dedup       bool   `toml:"dedup"`
	} `toml:"transfer"`
	LockDir  string `toml:"lock_dir"`
	LogFile  string `toml:"log_file"`
	SnitchID string `toml:"snitch_id"`
}

const DefaultLockDir = "/var/run/zmirror/locks"

var pathHierarchy = []string{
	"/etc/zmirror.toml",
	"/usr/local/etc/zmirror.toml",
	"/opt/local/etc/zmirror.toml",
}

// Load reads the first config file found in the path hierarchy. When none
// exists it returns an empty config with defaults filled in.
func Load() (*Config, error) {
	conf := &Config{}
	conf.LockDir = DefaultLockDir

	for _, path := range pathHierarchy {
		f, err := os.Open(path)
		if err != nil && os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := toml.NewDecoder(f)
		if _, err := dec.Decode(conf); err != nil {
			return nil, fmt.Errorf("decoding '%s': %w", path, err)
		}
		break
	}

	if conf.LockDir == "" {
		conf.LockDir = DefaultLockDir
	}
	return conf, nil
}
