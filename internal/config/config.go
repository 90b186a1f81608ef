package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Repository kinds accepted in content_directory.repositories.
const (
	RepositoryTypeMusic     = "music"
	RepositoryTypeDirectory = "directory"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Content directory configuration
	ContentDirectory ContentDirectoryConfig `yaml:"content_directory" json:"content_directory"`

	// Tag cache configuration
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"UPNPCDS_HOST"`
	Port         int           `yaml:"port" json:"port" env:"UPNPCDS_PORT"`
	ContentPath  string        `yaml:"content_path" json:"content_path" env:"UPNPCDS_CONTENT_PATH"`
	FriendlyName string        `yaml:"friendly_name" json:"friendly_name" env:"UPNPCDS_FRIENDLY_NAME"`
	UUID         string        `yaml:"uuid" json:"uuid" env:"UPNPCDS_UUID"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"UPNPCDS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"UPNPCDS_WRITE_TIMEOUT"`
}

// ContentDirectoryConfig lists the repositories mounted in the catalog
type ContentDirectoryConfig struct {
	Repositories []RepositoryConfig `yaml:"repositories" json:"repositories"`
	ScanWorkers  int                `yaml:"scan_workers" json:"scan_workers" env:"UPNPCDS_SCAN_WORKERS"`
}

// RepositoryConfig describes one content source
type RepositoryConfig struct {
	Type      string `yaml:"type" json:"type"`
	MountPath string `yaml:"mount_path" json:"mount_path"`
	Path      string `yaml:"path" json:"path"`
}

// CacheConfig controls the extracted-tag cache
type CacheConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled" env:"UPNPCDS_CACHE_ENABLED"`
	Type         string `yaml:"type" json:"type" env:"UPNPCDS_CACHE_TYPE"`
	DatabasePath string `yaml:"database_path" json:"database_path" env:"UPNPCDS_CACHE_PATH"`
	DSN          string `yaml:"dsn" json:"-" env:"UPNPCDS_CACHE_DSN"`
	LogQueries   bool   `yaml:"log_queries" json:"log_queries" env:"UPNPCDS_CACHE_LOG_QUERIES"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" json:"level" env:"UPNPCDS_LOG_LEVEL"`
	Format       string `yaml:"format" json:"format" env:"UPNPCDS_LOG_FORMAT"`
	Output       string `yaml:"output" json:"output" env:"UPNPCDS_LOG_OUTPUT"`
	FilePath     string `yaml:"file_path" json:"file_path" env:"UPNPCDS_LOG_FILE"`
	EnableColors bool   `yaml:"enable_colors" json:"enable_colors" env:"UPNPCDS_LOG_COLORS"`
}

// ConfigManager manages application configuration
type ConfigManager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         10293,
			ContentPath:  "/content",
			FriendlyName: "upnpcds",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		ContentDirectory: ContentDirectoryConfig{
			Repositories: []RepositoryConfig{},
			ScanWorkers:  0, // Auto-detect
		},
		Cache: CacheConfig{
			Enabled:      false,
			Type:         "sqlite",
			DatabasePath: "upnpcds-tags.db",
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "text",
			Output:       "stdout",
			EnableColors: true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.configPath = configPath

	newConfig := DefaultConfig()

	if configPath != "" {
		if !fileExists(configPath) {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		if err := cm.loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadFromEnv(newConfig); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.applyDerivedConfig(newConfig)

	cm.config = newConfig
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	// Return a copy to prevent external modifications
	configCopy := *cm.config
	configCopy.ContentDirectory.Repositories = append([]RepositoryConfig(nil), cm.config.ContentDirectory.Repositories...)
	return &configCopy
}

// SaveConfig saves the current configuration to file
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	return cm.saveToFile(cm.configPath, cm.config)
}

// Helper methods

func (cm *ConfigManager) loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func (cm *ConfigManager) saveToFile(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (cm *ConfigManager) loadFromEnv(config *Config) error {
	return loadStructFromEnv(reflect.ValueOf(config).Elem())
}

// loadStructFromEnv overrides fields carrying an env tag when the variable is
// set. Defaults come from DefaultConfig, never from the environment pass.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(value, ",")
			for i, v := range values {
				values[i] = strings.TrimSpace(v)
			}
			field.Set(reflect.ValueOf(values))
		}
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func (cm *ConfigManager) validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if !strings.HasPrefix(config.Server.ContentPath, "/") {
		return fmt.Errorf("content_path must start with '/': %q", config.Server.ContentPath)
	}

	if config.ContentDirectory.ScanWorkers < 0 {
		return fmt.Errorf("invalid scan worker count: %d", config.ContentDirectory.ScanWorkers)
	}

	if config.Cache.Type != "sqlite" && config.Cache.Type != "postgres" {
		return fmt.Errorf("unsupported cache type: %s", config.Cache.Type)
	}

	seen := make(map[string]bool)
	for i, repo := range config.ContentDirectory.Repositories {
		switch repo.Type {
		case RepositoryTypeMusic, RepositoryTypeDirectory:
		default:
			return fmt.Errorf("repository %d: unsupported type %q", i, repo.Type)
		}
		if !strings.HasPrefix(repo.MountPath, "/") {
			return fmt.Errorf("repository %d: mount_path must start with '/': %q", i, repo.MountPath)
		}
		if repo.Path == "" {
			return fmt.Errorf("repository %d: path is required", i)
		}
		if seen[repo.MountPath] {
			return fmt.Errorf("repository %d: duplicate mount_path %q", i, repo.MountPath)
		}
		seen[repo.MountPath] = true
	}

	return nil
}

func (cm *ConfigManager) applyDerivedConfig(config *Config) {
	if config.Server.UUID == "" {
		config.Server.UUID = uuid.New().String()
	}

	config.Server.ContentPath = strings.TrimSuffix(config.Server.ContentPath, "/")
	if config.Server.ContentPath == "" {
		config.Server.ContentPath = "/content"
	}

	if config.ContentDirectory.ScanWorkers == 0 {
		config.ContentDirectory.ScanWorkers = min(max(1, runtime.NumCPU()), 16)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Global convenience functions

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// Save saves the current configuration
func Save() error {
	return GetConfigManager().SaveConfig()
}
