/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
	"gopkg.in/yaml.v3"
)

// Storage engines
const (
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

// Config represents the recordkit configuration
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Port     int            `yaml:"port"`
	Bind     string         `yaml:"bind"`
	Storage  Storage        `yaml:"storage"`
	Security Security       `yaml:"security"`
	Paging   Paging         `yaml:"paging"`
	Logging  logger.Logging `yaml:"logging"`
	Views    []View         `yaml:"views"`
}

// Storage selects and tunes the record store
type Storage struct {
	Engine string `yaml:"engine"`
	// Sync makes pebble writes durable before they return
	Sync bool `yaml:"sync"`
	// FsyncInterval batches memory journal syncs; 0 syncs every write
	FsyncInterval time.Duration `yaml:"fsync_interval"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"`
}

// Paging tunes record sets
type Paging struct {
	PageSize    int `yaml:"page_size"`
	MaxPages    int `yaml:"max_pages"`
	CursorCache int `yaml:"cursor_cache"`
	// RecordSets caps the record sets the server keeps between requests
	RecordSets int `yaml:"record_sets"`
}

// View declares a view and the fields of its records
type View struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
	// Order defaults to the primary key ascending
	Order []OrderBy `yaml:"order,omitempty"`
}

type Field struct {
	Name       string `yaml:"name"`
	Alias      string `yaml:"alias,omitempty"`
	Kind       string `yaml:"kind"`
	Length     int    `yaml:"length,omitempty"`
	Scale      *int32 `yaml:"scale,omitempty"`
	Required   bool   `yaml:"required,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
}

type OrderBy struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Storage: Storage{
			Engine: EnginePebble,
		},
		Security: Security{
			APIKey: "auto",
		},
		Paging: Paging{
			PageSize:    100,
			MaxPages:    64,
			CursorCache: 1024,
			RecordSets:  128,
		},
		Logging: logger.Logging{
			Env:   "prod",
			Level: "info",
		},
		Views: []View{
			{
				Name: "records",
				Fields: []Field{
					{Name: "id", Kind: "long", PrimaryKey: true},
					{Name: "name", Kind: "string", Length: 255},
					{Name: "created", Kind: "timestamp"},
				},
			},
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./recordkit.yaml"
	}

	// For Linux/macOS, use ~/.config/recordkit/config.yaml
	return filepath.Join(homeDir, ".config", "recordkit", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// BuildViews turns the view declarations into schema views, in declaration
// order
func (c *Config) BuildViews() ([]*schema.View, error) {
	views := make([]*schema.View, 0, len(c.Views))
	seen := make(map[string]bool, len(c.Views))
	for _, vc := range c.Views {
		if vc.Name == "" {
			return nil, fmt.Errorf("view without a name")
		}
		if seen[vc.Name] {
			return nil, fmt.Errorf("view %s declared twice", vc.Name)
		}
		seen[vc.Name] = true

		view, err := vc.Build()
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Build creates the schema view declared by v
func (v View) Build() (*schema.View, error) {
	fields, err := schema.NewFieldList()
	if err != nil {
		return nil, err
	}
	for _, fc := range v.Fields {
		kind, err := value.ParseKind(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("view %s field %s: %w", v.Name, fc.Name, err)
		}
		f := schema.NewField(fc.Name, kind)
		if fc.Alias != "" {
			f.Alias = fc.Alias
		}
		f.Length = fc.Length
		if fc.Scale != nil {
			f.Scale = *fc.Scale
		}
		f.Required = fc.Required
		f.PrimaryKey = fc.PrimaryKey
		f.Nullable = !fc.Required && !fc.PrimaryKey
		if err := fields.Add(f); err != nil {
			return nil, fmt.Errorf("view %s: %w", v.Name, err)
		}
	}

	var order *schema.Order
	if len(v.Order) > 0 {
		order = schema.NewOrder()
		for _, oc := range v.Order {
			f, ok := fields.Lookup(oc.Field)
			if !ok {
				return nil, fmt.Errorf("view %s order: %w: %q", v.Name, schema.ErrFieldNotFound, oc.Field)
			}
			order.Add(f, !oc.Desc)
		}
	}

	view, err := schema.NewTable(v.Name, fields).View(v.Name, order)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", v.Name, err)
	}
	return view, nil
}
