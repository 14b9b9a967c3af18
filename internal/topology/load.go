package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML topology file and validates it. Unknown keys are rejected
// so a typo in a table name does not silently yield an empty topology.
func Load(path string, opts ...Option) (*Topology, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode topology %s: %w", path, err)
	}

	t, err := New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return t, nil
}

// DefaultConfig is the campus layout the detector ships with: four numbered
// zones with named aliases, and weights favoring academic over leisure areas.
// Lab, Classroom and Corridor are weight categories only; they have no
// position and resolve to the origin for distance.
func DefaultConfig() Config {
	return Config{
		Coordinates: map[string]Point{
			"Zone_1":    {X: 0, Y: 0},
			"Zone_2":    {X: 100, Y: 0},
			"Zone_3":    {X: 0, Y: 100},
			"Zone_4":    {X: 500, Y: 500},
			"Main Hall": {X: 50, Y: 50},
		},
		Aliases: map[string]string{
			"Library": "Zone_3",
			"Canteen": "Zone_4",
			"Lab 1":   "Zone_2",
		},
		Weights: map[string]float64{
			"Lab":       0.9,
			"Classroom": 0.8,
			"Library":   0.5,
			"Canteen":   0.4,
			"Corridor":  0.2,
			"Zone_1":    0.8,
			"Zone_2":    0.9,
			"Zone_3":    0.5,
			"Zone_4":    0.4,
		},
	}
}

// Default builds the topology from DefaultConfig.
func Default(opts ...Option) *Topology {
	t, err := New(DefaultConfig(), opts...)
	if err != nil {
		// DefaultConfig is a literal; failing here is a programming error.
		panic(err)
	}
	return t
}
