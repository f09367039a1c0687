package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".modtest"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for modtest settings.
const envPrefix = "MODTEST"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("git.dir", "")
	viperCfg.SetDefault("git.work_tree", "")
	viperCfg.SetDefault("git.base_ref", DefaultGitBaseRef)
	viperCfg.SetDefault("git.fetch_mode", DefaultGitFetchMode)
	viperCfg.SetDefault("git.lock_timeout", DefaultGitLockTimeout)

	viperCfg.SetDefault("modules.include", []string{})
	viperCfg.SetDefault("modules.exclude", []string{})
	viperCfg.SetDefault("modules.ignore", []string{})
	viperCfg.SetDefault("modules.manifests", DefaultManifests())

	viperCfg.SetDefault("server.binary", DefaultServerBinary)
	viperCfg.SetDefault("server.database", "")
	viperCfg.SetDefault("server.log_db_level", DefaultServerLogDBLevel)
	viperCfg.SetDefault("server.extra_args", []string{})
	viperCfg.SetDefault("server.tags", []string{})

	viperCfg.SetDefault("logstore.backend", DefaultLogStoreBackend)
	viperCfg.SetDefault("logstore.dsn", "")
	viperCfg.SetDefault("logstore.path", "")

	viperCfg.SetDefault("evaluation.fail_level", DefaultEvaluationFailLevel)
	viperCfg.SetDefault("evaluation.allow", []string{})

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("telemetry.environment", DefaultTelemetryEnvironment)
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.pushgateway_url", "")
	viperCfg.SetDefault("telemetry.pushgateway_job", DefaultTelemetryPushgatewayJob)
}
