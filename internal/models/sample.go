package models

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Target is a monitored endpoint.
type Target struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// Label returns the display name, falling back to the address.
func (t Target) Label() string {
	if t.Name == "" || t.Name == t.Address {
		return t.Address
	}
	return t.Name + " (" + t.Address + ")"
}

// Sample is a single probe observation. RTTMs is nil when no reply arrived.
type Sample struct {
	Timestamp         time.Time
	Target            string
	RTTMs             *float64
	PacketLossPercent float64
}

// HasRTT reports whether the sample carries a round-trip reading.
func (s Sample) HasRTT() bool {
	return s.RTTMs != nil
}

// RTT returns the round-trip time or zero when absent.
func (s Sample) RTT() float64 {
	if s.RTTMs == nil {
		return 0
	}
	return *s.RTTMs
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// UnmarshalYAML accepts either a bare address or a {name, address} mapping.
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Address = node.Value
		return nil
	}
	type plain Target
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Target(p)
	return nil
}
