package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root string `yaml:"root"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Sync struct {
		CacheDB         string `yaml:"cache_db"`
		UseCachedModels bool   `yaml:"use_cached_models"`
		SingleVariant   bool   `yaml:"single_variant"` // request only registry-selected variants
		Background      bool   `yaml:"background"`
	} `yaml:"sync"`
	Provider struct {
		Command  string        `yaml:"command"`   // external model-dump tool
		Args     []string      `yaml:"args"`
		DumpFile string        `yaml:"dump_file"` // pre-recorded model dump, used when command is empty
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"provider"`
	Variants struct {
		File string `yaml:"file"`
	} `yaml:"variants"`
	Workspace struct {
		File string `yaml:"file"`
	} `yaml:"workspace"`
	Checksums struct {
		File string `yaml:"file"`
	} `yaml:"checksums"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if root := os.Getenv("MODELSYNC_PROJECT_ROOT"); root != "" {
		cfg.Project.Root = root
	}
	if db := os.Getenv("MODELSYNC_CACHE_DB"); db != "" {
		cfg.Sync.CacheDB = db
	}
	if cmd := os.Getenv("MODELSYNC_PROVIDER_COMMAND"); cmd != "" {
		cfg.Provider.Command = cmd
	}
	if level := os.Getenv("MODELSYNC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(absOrSelf(c.Project.Root))
	}
	if c.Sync.CacheDB == "" {
		c.Sync.CacheDB = filepath.Join(".modelsync", "models.db")
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 10 * time.Minute
	}
	if c.Variants.File == "" {
		c.Variants.File = filepath.Join(".modelsync", "variants.yaml")
	}
	if c.Workspace.File == "" {
		c.Workspace.File = filepath.Join(".modelsync", "workspace.yaml")
	}
	if c.Checksums.File == "" {
		c.Checksums.File = filepath.Join(".modelsync", "checksums.yaml")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func absOrSelf(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
