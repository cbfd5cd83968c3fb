package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Engine names accepted in the configuration.
const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
	EngineBolt    = "bolt"
)

type Config struct {
	// Directory holding the engine files.
	DataDir string `toml:"data-dir"`
	Engine  string `toml:"engine"`
	// Create DataDir when it does not exist.
	CreateIfMissing bool `toml:"create-if-missing"`
	// Block cache size in bytes, pebble only.
	CacheSize int64 `toml:"cache-size"`

	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("CSVD_LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		DataDir:         "csvd-data",
		Engine:          EnginePebble,
		CreateIfMissing: true,
		LogLevel:        getLogLevel(),
		LogFormat:       "console",
	}
}

// Load reads a TOML file over the defaults. Keys the file does not set keep
// their default value; unknown keys are rejected.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data-dir must be set")
	}
	switch c.Engine {
	case EnginePebble, EngineLevelDB, EngineBolt:
	default:
		return fmt.Errorf("unknown engine %q, expected %s, %s or %s",
			c.Engine, EnginePebble, EngineLevelDB, EngineBolt)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache-size must not be negative")
	}
	return nil
}
