package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/p2p"
	"github.com/quickrtc/p2p-go/pkg/signaling"
	"github.com/quickrtc/p2p-go/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SDK configuration.
type Config struct {
	// Signaling transport configuration.
	Signaling signaling.Config `yaml:"signaling"`
	// WebRTC engine configuration.
	Engine engine.Config `yaml:"engine"`
	// Session channel configuration.
	Channel p2p.Config `yaml:"channel"`
	// Tracing configuration.
	Telemetry telemetry.Config `yaml:"telemetry"`
	// Starting from which level to log stuff.
	LogLevel string `yaml:"log"`
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// Tries to load a config from the `CONFIG` environment variable.
// If the environment variable is not set, tries to load a config from the
// provided path to the config file (YAML). Returns an error if the config
// could not be loaded.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}

		return LoadConfigFromPath(path)
	}

	return config, nil
}

// Tries to load the config from environment variable (`CONFIG`).
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}

	return LoadConfigFromString(configEnv)
}

// Tries to load a config from the provided path.
func LoadConfigFromPath(path string) (*Config, error) {
	logrus.WithField("path", path).Info("loading config")

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadConfigFromString(string(file))
}

// Load config from the provided string.
// Returns an error if the string is not a valid YAML.
func LoadConfigFromString(configString string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	if config.Signaling.URL == "" || config.Signaling.ClientID == "" {
		return nil, errors.New("signaling url and client id must be set")
	}

	if config.Channel.ReconnectTimeout == 0 {
		config.Channel.ReconnectTimeout = p2p.DefaultConfig().ReconnectTimeout
	}
	if config.Channel.ReconnectTimeout < 0 || config.Channel.ReconnectTimeout > 120 {
		return nil, errors.New("invalid reconnect timeout")
	}

	return &config, nil
}
