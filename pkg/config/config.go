// Package config loads the chatbox configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/chatbox/pkg/chatbox"
	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
)

// Host kinds.
const (
	HostSimulated = "simulated"
	HostWebsocket = "websocket"
	HostNone      = "none"
)

// Config is the top-level configuration.
type Config struct {
	Title           string            `yaml:"title"`
	Placeholder     string            `yaml:"placeholder"`
	Footer          string            `yaml:"footer"`
	Theme           chatbox.Theme     `yaml:"theme"`
	InitialMessages []message.Message `yaml:"initial_messages"`
	Host            HostConfig        `yaml:"host"`
	Log             LogConfig         `yaml:"log"`
}

// HostConfig selects where replies come from.
type HostConfig struct {
	Kind       string `yaml:"kind"`        // simulated, websocket or none.
	ReplyDelay string `yaml:"reply_delay"` // Duration string for the simulated host (e.g. "1s").
	Deferred   bool   `yaml:"deferred"`    // Simulated host replies through Resolve instead of returning.
	Listen     string `yaml:"listen"`      // Websocket listen address (e.g. "127.0.0.1:7331").
	Path       string `yaml:"path"`        // Websocket endpoint path.
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Title:       chatbox.DefaultTitle,
		Placeholder: "Type a message...",
		InitialMessages: []message.Message{
			message.New(role.Assistant, "Hello! How can I help you today?"),
		},
		Host: HostConfig{
			Kind:       HostSimulated,
			ReplyDelay: "1s",
			Listen:     "127.0.0.1:7331",
			Path:       "/chat",
		},
		Log: LogConfig{
			File:  "chatbox.log",
			Level: "info",
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided config
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	for i, m := range c.InitialMessages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("config: initial_messages[%d]: %w", i, err)
		}
	}

	switch c.Host.Kind {
	case HostSimulated:
		if _, err := c.Host.Delay(); err != nil {
			return err
		}
	case HostWebsocket:
		if c.Host.Listen == "" {
			return errors.New("config: host: listen address is required for websocket")
		}
	case HostNone:
	default:
		return fmt.Errorf("config: host: unknown kind %q", c.Host.Kind)
	}

	return nil
}

// Delay parses ReplyDelay. An empty value means no delay.
func (h HostConfig) Delay() (time.Duration, error) {
	if h.ReplyDelay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(h.ReplyDelay)
	if err != nil {
		return 0, fmt.Errorf("config: host: reply_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: host: reply_delay must not be negative, got %s", d)
	}
	return d, nil
}

// WidgetOptions maps the presentation settings onto chatbox options. The
// handler and logger are left for the caller.
func (c Config) WidgetOptions() chatbox.Options {
	initial := make([]message.Message, len(c.InitialMessages))
	copy(initial, c.InitialMessages)

	return chatbox.Options{
		Title:       c.Title,
		Placeholder: c.Placeholder,
		FooterText:  c.Footer,
		Initial:     initial,
		Theme:       c.Theme,
	}
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return data, nil
}

// Save writes c to path as YAML.
func (c Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
