// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Nodes   []NodeConfig  `yaml:"nodes" validate:"required,min=1,unique=Name,dive"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ClientConfig represents client-wide tuning.
type ClientConfig struct {
	BotName           string        `yaml:"bot_name" default:"lavabox"`
	UserID            string        `yaml:"user_id"`
	Attempts          int           `yaml:"attempts" default:"3" validate:"gte=1"`
	RetryDelay        time.Duration `yaml:"retry_delay" default:"2500ms"`
	RequestTimeout    time.Duration `yaml:"request_timeout" default:"10s"`
	VoiceTimeout      time.Duration `yaml:"voice_timeout" default:"5s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
}

// NodeConfig represents a single Lavalink node.
type NodeConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Host     string `yaml:"host" default:"127.0.0.1" validate:"required"`
	Port     int    `yaml:"port" default:"2333" validate:"gte=1,lte=65535"`
	Password string `yaml:"password" default:"youshallnotpass"`
	SSL      bool   `yaml:"ssl"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error"`
	File   string `yaml:"file"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv fills node passwords left empty in the file.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("LAVALINK_PASSWORD"); v != "" {
		for i := range c.Nodes {
			if c.Nodes[i].Password == "" {
				c.Nodes[i].Password = v
			}
		}
	}
	if v := os.Getenv("LAVABOX_USER_ID"); v != "" {
		c.Client.UserID = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// Node returns the node with the given name.
func (c *Config) Node(name string) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeConfig{}, false
}
