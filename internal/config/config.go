package config

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/posesim/internal/bus"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFreq    = 100.0
	DefaultCID     = 111
	DefaultFrameID = 0
)

const (
	TransportUDP   = "udp"
	TransportLocal = "local"
)

type Config struct {
	FrameID    uint32         `yaml:"frame_id"`
	CID        uint16         `yaml:"cid"`
	Freq       float64        `yaml:"freq"`
	Initial    dynamo.Pose    `yaml:"initial"`
	Verbose    bool           `yaml:"verbose"`
	Transport  string         `yaml:"transport"`
	PublishIDs []uint32       `yaml:"publish_ids,omitempty"`
	Record     bool           `yaml:"record"`
	Scenario   ScenarioConfig `yaml:"scenario,omitempty"`
}

// ScenarioConfig scripts an offline run. A zero Dt falls back to 1/freq.
type ScenarioConfig struct {
	Name     string        `yaml:"name,omitempty"`
	Dt       float64       `yaml:"dt,omitempty"`
	Segments []sim.Segment `yaml:"segments,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		FrameID:   DefaultFrameID,
		CID:       DefaultCID,
		Freq:      DefaultFreq,
		Transport: TransportUDP,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if !(c.Freq > 0) || math.IsInf(c.Freq, 0) {
		return fmt.Errorf("%w: freq must be positive, got %v", dynamo.ErrInvalidConfig, c.Freq)
	}
	if err := bus.ValidCID(c.CID); err != nil {
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	switch c.Transport {
	case TransportUDP, TransportLocal:
	default:
		return fmt.Errorf("%w: unknown transport %q", dynamo.ErrInvalidConfig, c.Transport)
	}
	if !c.Initial.IsFinite() {
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, dynamo.ErrInvalidPose)
	}
	if c.Scenario.Dt < 0 || math.IsNaN(c.Scenario.Dt) {
		return fmt.Errorf("%w: scenario dt must not be negative", dynamo.ErrInvalidConfig)
	}
	return nil
}

// Dt is the integration step implied by the frequency.
func (c *Config) Dt() float64 {
	return 1 / c.Freq
}

// OutputIDs returns the sender stamps each frame is published under:
// the frame id first, then the extra publish ids without duplicates.
func (c *Config) OutputIDs() []uint32 {
	ids := []uint32{c.FrameID}
	seen := map[uint32]bool{c.FrameID: true}
	for _, id := range c.PublishIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// SimScenario builds the offline scenario described by the config.
func (c *Config) SimScenario() sim.Scenario {
	dt := c.Scenario.Dt
	if dt == 0 {
		dt = c.Dt()
	}
	return sim.Scenario{
		Initial:  c.Initial,
		Dt:       dt,
		Segments: append([]sim.Segment(nil), c.Scenario.Segments...),
	}
}
