package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sampling  SamplingConfig  `mapstructure:"sampling"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdownTimeout"`
}

// SamplingConfig holds the sensor polling configuration. Intervals are in
// milliseconds, keyed by metric family.
type SamplingConfig struct {
	IntervalsMS    map[string]int `mapstructure:"intervalsMs"`
	EnabledSources []string       `mapstructure:"enabledSources"`
	HistoryPoints  int            `mapstructure:"historyPoints"`
}

// AlertsConfig holds rule evaluation and broadcast configuration
type AlertsConfig struct {
	HistoryMaxRecords       int `mapstructure:"historyMaxRecords"`
	DefaultCooldownSeconds  int `mapstructure:"defaultCooldownSeconds"`
	BroadcastTimeoutSeconds int `mapstructure:"broadcastTimeoutSeconds"`
}

// DiscoveryConfig holds peer discovery configuration
type DiscoveryConfig struct {
	ServiceType            string `mapstructure:"serviceType"`
	SweepIntervalSeconds   int    `mapstructure:"sweepIntervalSeconds"`
	LivenessTimeoutSeconds int    `mapstructure:"livenessTimeoutSeconds"`
}

// StorageConfig holds the durable store configuration
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default values
	viper.SetDefault("server.port", 3030)
	viper.SetDefault("server.shutdownTimeout", 10)
	viper.SetDefault("sampling.intervalsMs", map[string]int{
		"cpu":         1000,
		"memory":      1000,
		"disk":        5000,
		"temperature": 2000,
		"load":        5000,
	})
	viper.SetDefault("sampling.enabledSources", []string{"cpu", "memory", "disk", "temperature", "load"})
	// 24h of history at a 1s cadence for the fastest metrics
	viper.SetDefault("sampling.historyPoints", 86400)
	viper.SetDefault("alerts.historyMaxRecords", 1000)
	viper.SetDefault("alerts.defaultCooldownSeconds", 300)
	viper.SetDefault("alerts.broadcastTimeoutSeconds", 5)
	viper.SetDefault("discovery.serviceType", "_hardwatch._tcp")
	viper.SetDefault("discovery.sweepIntervalSeconds", 5)
	viper.SetDefault("discovery.livenessTimeoutSeconds", 30)
	viper.SetDefault("storage.path", "data/hardwatch.db")

	// Allow environment variables to override config file
	viper.SetEnvPrefix("HARDWATCH")
	viper.AutomaticEnv()

	// If config file is provided, read it
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	// Unmarshal config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
