package simulation

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sarchlab/dynet/sim"
	"gopkg.in/yaml.v3"
)

// Player kinds.
const (
	PlayerNone   = "none"
	PlayerTrace  = "trace"
	PlayerRandom = "random"
	PlayerEMEG   = "emeg"
)

// Delivery policies.
const (
	DeliveryDirect = "direct"
	DeliveryPath   = "path"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the configuration of a simulation.
type Config struct {
	Seed      int64           `yaml:"seed"`
	Rounds    int             `yaml:"rounds"`
	LogLevel  string          `yaml:"log_level"`
	Topology  TopologyConfig  `yaml:"topology"`
	Clock     ClockConfig     `yaml:"clock"`
	Messages  MessagesConfig  `yaml:"messages"`
	Player    PlayerConfig    `yaml:"player"`
	Recording RecordingConfig `yaml:"recording"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// TopologyConfig sets the defaults of the topology and its initial content.
type TopologyConfig struct {
	CommunicationRange float64 `yaml:"communication_range"`
	SensingRange       float64 `yaml:"sensing_range"`
	Width              float64 `yaml:"width"`
	Height             float64 `yaml:"height"`
	Wireless           bool    `yaml:"wireless"`
	RefreshMode        string  `yaml:"refresh_mode"`
	// File is a topology to import. Nodes is ignored when it is set.
	File  string `yaml:"file"`
	Nodes int    `yaml:"nodes"`
}

// ClockConfig sets how rounds are generated. A zero time unit runs rounds as
// fast as possible.
type ClockConfig struct {
	TimeUnit time.Duration `yaml:"time_unit"`
}

// MessagesConfig sets the message engine policies.
type MessagesConfig struct {
	Delay    int    `yaml:"delay"`
	Delivery string `yaml:"delivery"`
}

// PlayerConfig selects a dynamic-graph player.
type PlayerConfig struct {
	Kind          string  `yaml:"kind"`
	Trace         string  `yaml:"trace"`
	Nodes         int     `yaml:"nodes"`
	TimeBound     int     `yaml:"time_bound"`
	PresenceBound int     `yaml:"presence_bound"`
	BirthRate     float64 `yaml:"birth_rate"`
	DeathRate     float64 `yaml:"death_rate"`
}

// RecordingConfig sets where the run is recorded.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Trace   bool   `yaml:"trace"`
	// MovementTrace is a file receiving the node operations of the run, in
	// the format the trace player reads.
	MovementTrace string `yaml:"movement_trace"`
}

// MonitorConfig sets the HTTP monitor.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Rounds:   1000,
		LogLevel: "info",
		Topology: TopologyConfig{
			CommunicationRange: 100,
			Width:              600,
			Height:             400,
			Wireless:           true,
			RefreshMode:        "event",
		},
		Messages: MessagesConfig{
			Delay:    1,
			Delivery: DeliveryDirect,
		},
		Player: PlayerConfig{
			Kind:          PlayerNone,
			TimeBound:     50,
			PresenceBound: 20,
		},
	}
}

// Load reads configuration from the given path, then applies the DYNET_*
// environment variables, after loading the .env file of the working
// directory if there is one. A missing config file leaves the defaults.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides fields with DYNET_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"DYNET_ROUNDS":       &c.Rounds,
		"DYNET_NODES":        &c.Topology.Nodes,
		"DYNET_MONITOR_PORT": &c.Monitor.Port,
	}

	for name, field := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
			}

			*field = n
		}
	}

	if v, ok := lookup("DYNET_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: DYNET_SEED: %w", ErrInvalidConfig, err)
		}

		c.Seed = seed
	}

	if v, ok := lookup("DYNET_TIME_UNIT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: DYNET_TIME_UNIT: %w", ErrInvalidConfig, err)
		}

		c.Clock.TimeUnit = d
	}

	if v, ok := lookup("DYNET_LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	if v, ok := lookup("DYNET_RECORDING_PATH"); ok {
		c.Recording.Enabled = true
		c.Recording.Path = v
	}

	return nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	if c.Topology.Width == 0 {
		c.Topology.Width = defaults.Topology.Width
	}

	if c.Topology.Height == 0 {
		c.Topology.Height = defaults.Topology.Height
	}

	if c.Topology.RefreshMode == "" {
		c.Topology.RefreshMode = defaults.Topology.RefreshMode
	}

	if c.Messages.Delay == 0 {
		c.Messages.Delay = defaults.Messages.Delay
	}

	if c.Messages.Delivery == "" {
		c.Messages.Delivery = defaults.Messages.Delivery
	}

	if c.Player.Kind == "" {
		c.Player.Kind = defaults.Player.Kind
	}

	if c.Player.TimeBound == 0 {
		c.Player.TimeBound = defaults.Player.TimeBound
	}

	if c.Player.PresenceBound == 0 {
		c.Player.PresenceBound = defaults.Player.PresenceBound
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.Rounds < 0 {
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalidConfig)
	}

	if c.Topology.CommunicationRange < 0 || c.Topology.SensingRange < 0 {
		return fmt.Errorf("%w: ranges must not be negative", ErrInvalidConfig)
	}

	if c.Topology.Nodes < 0 {
		return fmt.Errorf("%w: topology.nodes must not be negative",
			ErrInvalidConfig)
	}

	if _, err := parseRefreshMode(c.Topology.RefreshMode); err != nil {
		return err
	}

	if c.Clock.TimeUnit < 0 {
		return fmt.Errorf("%w: clock.time_unit must not be negative",
			ErrInvalidConfig)
	}

	switch c.Messages.Delivery {
	case DeliveryDirect, DeliveryPath:
	default:
		return fmt.Errorf("%w: unknown delivery policy %q",
			ErrInvalidConfig, c.Messages.Delivery)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("%w: monitor.port %d", ErrInvalidConfig, c.Monitor.Port)
	}

	return c.Player.validate()
}

func (p *PlayerConfig) validate() error {
	switch p.Kind {
	case PlayerNone:
	case PlayerTrace:
		if p.Trace == "" {
			return fmt.Errorf("%w: trace player needs player.trace",
				ErrInvalidConfig)
		}
	case PlayerRandom, PlayerEMEG:
		if p.Nodes < 2 {
			return fmt.Errorf("%w: %s player needs at least 2 nodes",
				ErrInvalidConfig, p.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown player %q", ErrInvalidConfig, p.Kind)
	}

	return nil
}

func parseRefreshMode(mode string) (sim.RefreshMode, error) {
	switch mode {
	case sim.RefreshEventBased.String():
		return sim.RefreshEventBased, nil
	case sim.RefreshClockBased.String():
		return sim.RefreshClockBased, nil
	}

	return 0, fmt.Errorf("%w: unknown refresh mode %q", ErrInvalidConfig, mode)
}
