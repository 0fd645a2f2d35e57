package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ivanvanderbyl/remo-switch/pkg/discovery"
	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
)

// Config describes a single Remo-backed switch. It is read once at startup.
type Config struct {
	Name        string                 `yaml:"name"`
	Instance    string                 `yaml:"instance"`
	Service     string                 `yaml:"service"`
	LearnButton bool                   `yaml:"learnButton"`
	Signals     map[string]remo.Signal `yaml:"signals"`
	On          []Step                 `yaml:"on"`
	Off         []Step                 `yaml:"off"`

	HomeKit HomeKitConfig `yaml:"homekit"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// Step references a named signal and the pause, in milliseconds, taken after
// sending it.
type Step struct {
	Signal string `yaml:"signal"`
	Delay  int    `yaml:"delay"`
}

type HomeKitConfig struct {
	Pin         string `yaml:"pin"`
	StoragePath string `yaml:"storagePath"`
	Addr        string `yaml:"addr"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientID"`
	TopicPrefix string `yaml:"topicPrefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var ErrInvalidConfig = errors.New("invalid config")

func (s Step) Duration() time.Duration {
	return time.Duration(s.Delay) * time.Millisecond
}

// Enabled reports whether a broker was configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Sequence returns the steps played when switching to on.
func (c *Config) Sequence(on bool) []Step {
	if on {
		return c.On
	}
	return c.Off
}

// Load reads and validates the config file at path. Environment variables in
// the file are expanded. JSON files are accepted as well.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Service == "" {
		c.Service = discovery.ServiceType
	}
	if c.HomeKit.StoragePath == "" {
		c.HomeKit.StoragePath = "./db"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "remo-switch"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "remo-switch"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that every step refers to a known signal.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrInvalidConfig, "name is required")
	}

	for _, seq := range []struct {
		name  string
		steps []Step
	}{{"on", c.On}, {"off", c.Off}} {
		for i, step := range seq.steps {
			if _, ok := c.Signals[step.Signal]; !ok {
				return errors.Wrap(ErrInvalidConfig, fmt.Sprintf("%s[%d]: unknown signal %q", seq.name, i, step.Signal))
			}
			if step.Delay < 0 {
				return errors.Wrap(ErrInvalidConfig, fmt.Sprintf("%s[%d]: negative delay", seq.name, i))
			}
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.Wrap(ErrInvalidConfig, "mqtt qos must be 0, 1 or 2")
	}

	return nil
}
