// Package conf defines the application settings and loads them with viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Log rotation types
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file
	Rotation string // rotation type
	MaxSize  int64  // max size in bytes for RotationSize
}

// MainSettings contains the main application settings.
type MainSettings struct {
	Name string    // name of the node, can be used to identify the source
	Log  LogConfig // main log configuration
}

// SQLiteSettings contains the settings for the SQLite database.
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite store
	Path    string // path to the SQLite database file
}

// MySQLSettings contains the settings for the MySQL database.
type MySQLSettings struct {
	Enabled  bool   // true to enable the MySQL store
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// DatabaseSettings selects and configures the backing store.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// QCSettings governs when a job becomes QC-applicable.
type QCSettings struct {
	DeclaredValueThreshold int64    // declared value at or above which QC applies
	PrivilegedTiers        []string // service level names that always require QC
	HomeCountry            string   // shipments outside this country require QC
}

// LabelSettings controls warehouse print-label line generation.
type LabelSettings struct {
	SetLineWidth    int // max characters per set-name line
	PlayerLineWidth int // max characters for the player line
	PlayerScanWidth int // scan window when splitting an overlong player line
	MaxSetLines     int // max lines the set name may occupy
}

// GradingSettings contains grading domain configuration.
type GradingSettings struct {
	QC               QCSettings
	Label            LabelSettings
	LookupCacheTTL   int // minutes to cache scoring lookup tables, 0 disables caching
	DefaultServiceID int // grading service type recorded on certification records
}

// DispatchSettings configures the side-effect dispatcher.
type DispatchSettings struct {
	Workers      int // size of the worker pool
	DrainTimeout int // seconds to wait for dispatched actions before abandoning them
}

// CRMSettings configures the deal-stage sync client.
type CRMSettings struct {
	Enabled     bool
	APIURL      string // base URL of the CRM bridge
	BearerToken string // fixed bearer token for the bridge
}

// PushSettings configures optional ops push alerts (shoutrrr URLs).
type PushSettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
}

// NotificationSettings configures outbound customer email and ops alerts.
type NotificationSettings struct {
	Enabled     bool
	APIURL      string // base URL of the notification service
	BearerToken string // fixed bearer token for the notification service
	Push        PushSettings
}

// WebSettings configures the HTTP API server.
type WebSettings struct {
	Enabled bool
	Port    string
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug mode

	Main         MainSettings
	Database     DatabaseSettings
	Grading      GradingSettings
	Dispatch     DispatchSettings
	CRM          CRMSettings
	Notification NotificationSettings
	Web          WebSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// no config file, defaults apply
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "gradeflow"))
	}
	if configDir := os.Getenv("GRADEFLOW_CONFIG_DIR"); configDir != "" {
		paths = append([]string{configDir}, paths...)
	}
	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes the settings to the YAML configuration file using an
// atomic replace. Comments and structure of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// ValidateSettings checks settings for values the application cannot run with.
func ValidateSettings(settings *Settings) error {
	if settings.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch.workers must be at least 1, got %d", settings.Dispatch.Workers)
	}
	if settings.Dispatch.DrainTimeout < 0 {
		return fmt.Errorf("dispatch.draintimeout must not be negative, got %d", settings.Dispatch.DrainTimeout)
	}
	if settings.Grading.QC.DeclaredValueThreshold < 0 {
		return fmt.Errorf("grading.qc.declaredvaluethreshold must not be negative, got %d", settings.Grading.QC.DeclaredValueThreshold)
	}
	if settings.Database.SQLite.Enabled && settings.Database.MySQL.Enabled {
		return fmt.Errorf("only one of database.sqlite and database.mysql may be enabled")
	}
	return nil
}
