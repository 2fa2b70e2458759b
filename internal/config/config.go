// Package config loads the sensor table from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/ir-sensor/internal/channel"
	"github.com/sweeney/ir-sensor/internal/gpio"
	"github.com/sweeney/ir-sensor/internal/logic"
)

// DefaultDebounce applies to sensors that do not set one.
const DefaultDebounce = 50 * time.Millisecond

// Config is the daemon's sensor table and the GPIO chip it lives on.
type Config struct {
	Chip    string         `yaml:"chip"`
	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig is one IR receiver. Name and debounce are optional.
type SensorConfig struct {
	Name     string    `yaml:"name"`
	Pin      int       `yaml:"pin"`
	Debounce *Duration `yaml:"debounce"`
	Edge     string    `yaml:"edge"`
}

// Duration accepts Go duration strings ("50ms") or bare integers as
// milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	var ms int64
	if n.ShortTag() == "!!int" {
		if err := n.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns four sensors on distinct pins, one per IR receiver
// header on the board.
func Default() *Config {
	cfg := &Config{Chip: gpio.DefaultChip}
	for i, pin := range []int{gpio.PinIR1, gpio.PinIR2, gpio.PinIR3, gpio.PinIR4} {
		d := Duration(DefaultDebounce)
		cfg.Sensors = append(cfg.Sensors, SensorConfig{
			Name:     fmt.Sprintf("ir%d", i+1),
			Pin:      pin,
			Debounce: &d,
			Edge:     string(gpio.EdgeFalling),
		})
	}
	return cfg
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r, fills defaults and validates.
// Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Chip == "" {
		c.Chip = gpio.DefaultChip
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("ir%d", i+1)
		}
		if s.Debounce == nil {
			d := Duration(DefaultDebounce)
			s.Debounce = &d
		}
	}
}

// Validate checks the config without mutating it. Pin uniqueness and the
// channel limit are checked again by channel.New.
func (c *Config) Validate() error {
	if len(c.Sensors) == 0 {
		return errors.New("config: no sensors defined")
	}
	if len(c.Sensors) > channel.MaxChannels {
		return fmt.Errorf("config: %d sensors exceeds maximum of %d", len(c.Sensors), channel.MaxChannels)
	}

	pins := make(map[int]string, len(c.Sensors))
	names := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Pin < 0 {
			return fmt.Errorf("config: sensor %d (%s): negative pin %d", i, s.Name, s.Pin)
		}
		if other, dup := pins[s.Pin]; dup {
			return fmt.Errorf("config: sensors %s and %s both use pin %d", other, s.Name, s.Pin)
		}
		pins[s.Pin] = s.Name

		if names[s.Name] {
			return fmt.Errorf("config: duplicate sensor name %q", s.Name)
		}
		names[s.Name] = true

		if s.Debounce != nil && *s.Debounce < 0 {
			return fmt.Errorf("config: sensor %s: negative debounce", s.Name)
		}
		if _, err := gpio.ParseEdge(s.Edge); err != nil {
			return fmt.Errorf("config: sensor %s: %w", s.Name, err)
		}
	}
	return nil
}

func (s SensorConfig) debounce() time.Duration {
	if s.Debounce == nil {
		return DefaultDebounce
	}
	return time.Duration(*s.Debounce)
}

// ChannelConfigs returns the channel table configuration, in sensor order.
func (c *Config) ChannelConfigs() []channel.Config {
	out := make([]channel.Config, len(c.Sensors))
	for i, s := range c.Sensors {
		out[i] = channel.Config{Pin: s.Pin, Debounce: s.debounce()}
	}
	return out
}

// Bindings returns the pin/edge pairs to watch. Edges were checked by Validate.
func (c *Config) Bindings() []gpio.Binding {
	out := make([]gpio.Binding, len(c.Sensors))
	for i, s := range c.Sensors {
		e, _ := gpio.ParseEdge(s.Edge)
		out[i] = gpio.Binding{Pin: s.Pin, Edge: e}
	}
	return out
}

// SensorList returns the display identity of each channel.
func (c *Config) SensorList() []logic.Sensor {
	out := make([]logic.Sensor, len(c.Sensors))
	for i, s := range c.Sensors {
		out[i] = logic.Sensor{Name: s.Name, Pin: s.Pin}
	}
	return out
}

// Marshal renders the resolved config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// MarshalYAML renders the duration as a Go duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
