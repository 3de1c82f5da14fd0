package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReloadCallback is called when configuration is reloaded
type ReloadCallback func(oldConfig, newConfig *Config)

// Manager loads configuration and keeps it current on file changes
type Manager struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validator *validator.Validate
	logger    *zap.Logger
	config    *Config
	callbacks []ReloadCallback
}

// NewManager creates a configuration manager
func NewManager(logger *zap.Logger) *Manager {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	setDefaults(v)

	return &Manager{
		viper:     v,
		validator: validator.New(),
		logger:    logger,
	}
}

// Load reads the config file at path when it exists, applies environment
// overrides and validates the result
func (m *Manager) Load(path string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			m.viper.SetConfigFile(path)
			if err := m.viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			m.logger.Info("Loaded configuration file", zap.String("path", path))
		} else {
			m.logger.Warn("Config file not found, using defaults and environment variables", zap.String("path", path))
		}
	}

	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return cfg, nil
}

func (m *Manager) decode() (*Config, error) {
	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := m.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers a callback for configuration reloads
func (m *Manager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Watch starts watching the loaded config file for changes; it is a no-op
// when configuration came from defaults and environment only
func (m *Manager) Watch() {
	if m.viper.ConfigFileUsed() == "" {
		return
	}
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.logger.Info("Configuration file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		if err := m.Reload(); err != nil {
			m.logger.Error("Configuration reload rejected", zap.Error(err))
		}
	})
	m.viper.WatchConfig()
}

// Reload re-decodes the configuration; an invalid result keeps the old one
func (m *Manager) Reload() error {
	m.mu.Lock()
	if m.viper.ConfigFileUsed() != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to re-read config file: %w", err)
		}
	}
	cfg, err := m.decode()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	old := m.config
	m.config = cfg
	callbacks := append([]ReloadCallback(nil), m.callbacks...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, cfg)
	}
	return nil
}
