package util

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const Name = "formgate"
const ConfigFileName = "config.yaml"
const EnvFileName = ".env"

//go:embed config_default.yaml
var embeddedConfig []byte

const (
	defaultAuthAttempts = 3
	defaultMaxBodyBytes = 64 * 1024
	defaultRealm        = "Web 159352"
)

type AppConfig struct {
	Conf struct {
		Host         string  `yaml:"host" env:"FORMGATE_HOST"`
		HttpPort     int     `yaml:"httpPort" env:"FORMGATE_HTTPPORT"`
		WebRoot      string  `yaml:"webRoot" env:"FORMGATE_WEB_ROOT"`
		DataDir      string  `yaml:"dataDir" env:"FORMGATE_DATA_DIR"`
		AuthFile     string  `yaml:"authFile" env:"FORMGATE_AUTH_FILE"`
		Store        string  `yaml:"store" env:"FORMGATE_STORE"`
		AuthDb       string  `yaml:"authDb" env:"FORMGATE_AUTH_DB"`
		AuthAttempts int     `yaml:"authAttempts" env:"FORMGATE_AUTH_ATTEMPTS"`
		DisableAuth  bool    `yaml:"disableAuth" env:"FORMGATE_DISABLE_AUTH"`
		DisableBan   bool    `yaml:"disableBan" env:"FORMGATE_DISABLE_BAN"`
		Realm        string  `yaml:"realm" env:"FORMGATE_REALM"`
		MaxBodyBytes int64   `yaml:"maxBodyBytes" env:"FORMGATE_MAX_BODY_BYTES"`
		RateLimit    float64 `yaml:"rateLimit" env:"FORMGATE_RATE_LIMIT"`
		RateBurst    int     `yaml:"rateBurst" env:"FORMGATE_RATE_BURST"`
		MetricsAddr  string  `yaml:"metricsAddr" env:"FORMGATE_METRICS_ADDR"`
		OmdbApiKey   string  `yaml:"omdbApiKey" env:"FORMGATE_OMDB_API_KEY"`
		WithJournald bool    `yaml:"withJournald" env:"FORMGATE_WITH_JOURNALD"`
		Development  bool    `yaml:"development" env:"FORMGATE_DEVELOPMENT"`
	}
}

// Store backends
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	if err := ParseConf(buf, c); err != nil {
		return nil, err
	}

	// FORMGATE_* environment variables win over the file
	if err := cleanenv.UpdateEnv(c); err != nil {
		return nil, fmt.Errorf("in environment: %w", err)
	}

	// The OMDb key may also live in a .env file next to the binary. It is read
	// into the config only, the process environment is left alone.
	if c.Conf.OmdbApiKey == "" {
		if env, err := godotenv.Read(EnvFileName); err == nil {
			c.Conf.OmdbApiKey = env["FORMGATE_OMDB_API_KEY"]
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: could not read %s: %v", EnvFileName, err)
		}
	}

	c.normalize()
	return c, nil
}

// ParseConf decodes YAML config bytes into c without applying defaults
func ParseConf(buf []byte, c *AppConfig) error {
	if err := yaml.Unmarshal(buf, c); err != nil {
		return fmt.Errorf("in config file: %w", err)
	}
	return nil
}

// normalize fills defaults and clamps out of range values
func (c *AppConfig) normalize() {
	if c.Conf.HttpPort <= 0 || c.Conf.HttpPort > 65535 {
		if c.Conf.HttpPort != 0 {
			log.Printf("httpPort value %d is out of range, using 8080", c.Conf.HttpPort)
		}
		c.Conf.HttpPort = 8080
	}

	if c.Conf.AuthAttempts < 1 {
		if c.Conf.AuthAttempts != 0 {
			log.Printf("authAttempts value %d is less than minimum of 1, setting to default %d", c.Conf.AuthAttempts, defaultAuthAttempts)
		}
		c.Conf.AuthAttempts = defaultAuthAttempts
	}

	if c.Conf.WebRoot == "" {
		c.Conf.WebRoot = "."
	}
	if c.Conf.DataDir == "" {
		c.Conf.DataDir = filepath.Join(c.Conf.WebRoot, "data")
	}
	if c.Conf.AuthFile == "" {
		c.Conf.AuthFile = "auth.json"
	}
	if c.Conf.AuthDb == "" {
		c.Conf.AuthDb = "auth.db"
	}

	switch c.Conf.Store {
	case StoreJSON, StoreSQLite:
	case "":
		c.Conf.Store = StoreJSON
	default:
		log.Printf("Unknown store %q, falling back to %s", c.Conf.Store, StoreJSON)
		c.Conf.Store = StoreJSON
	}

	if c.Conf.Realm == "" {
		c.Conf.Realm = defaultRealm
	}
	if c.Conf.MaxBodyBytes <= 0 {
		c.Conf.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Conf.RateLimit < 0 {
		c.Conf.RateLimit = 0
	}
	if c.Conf.RateLimit > 0 && c.Conf.RateBurst < 1 {
		c.Conf.RateBurst = int(c.Conf.RateLimit) + 1
	}
}

// Normalize applies defaults to a config built in code (tests, admin CLI)
func (c *AppConfig) Normalize() *AppConfig {
	c.normalize()
	return c
}

// GetConfigDir returns ~/.config/formgate, creating it if needed
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// ResolveFilePath prefers a file in the working directory and falls back to the user config dir
func ResolveFilePath(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if dir, err := GetConfigDir(); err == nil {
		return filepath.Join(dir, name)
	}
	return name
}
