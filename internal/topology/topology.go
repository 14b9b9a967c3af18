// Package topology holds the immutable zone map used for travel plausibility:
// a coordinate table (zone -> position in meters), an alias table (alternate
// name -> canonical zone) and a weight table (zone or category -> priority in
// [0,1]) used to break simultaneous conflicts.
package topology

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"

	"travelguard/pkg/platform/sentinel"
)

// DefaultWeight is the neutral priority for zones absent from the weight table.
const DefaultWeight = 0.5

// Point is a planar position in meters.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Config is the raw form of a topology, as loaded from YAML.
type Config struct {
	Coordinates map[string]Point   `yaml:"coordinates"`
	Weights     map[string]float64 `yaml:"weights"`
	// Aliases maps an alternate name to a zone in Coordinates. An alias shares
	// the zone's position, and its weight unless Weights names the alias.
	Aliases map[string]string `yaml:"aliases"`
	// Required lists zones that must have a coordinate; New fails otherwise.
	Required []string `yaml:"required"`
}

// Topology is safe for concurrent use; nothing in it changes after New
// except the set of zones already reported as missing.
type Topology struct {
	coords  map[string]Point
	weights map[string]float64
	aliases map[string]string
	logger  *slog.Logger

	gapsMu sync.Mutex
	gaps   map[string]struct{}
}

type Option func(*Topology)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Topology) {
		t.logger = logger
	}
}

// New validates cfg and builds a Topology. Names must be non-empty,
// coordinates finite, weights within [0,1] and every Required zone present.
func New(cfg Config, opts ...Option) (*Topology, error) {
	t := &Topology{
		coords:  make(map[string]Point, len(cfg.Coordinates)),
		weights: make(map[string]float64, len(cfg.Weights)),
		aliases: make(map[string]string, len(cfg.Aliases)),
		logger:  slog.Default(),
		gaps:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	for name, p := range cfg.Coordinates {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("coordinate with empty zone name: %w", sentinel.ErrInvalidConfig)
		}
		if !finite(p.X) || !finite(p.Y) {
			return nil, fmt.Errorf("zone %q: non-finite coordinate: %w", name, sentinel.ErrInvalidConfig)
		}
		t.coords[name] = p
	}
	for name, w := range cfg.Weights {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("weight with empty zone name: %w", sentinel.ErrInvalidConfig)
		}
		if !finite(w) || w < 0 || w > 1 {
			return nil, fmt.Errorf("zone %q: weight %v outside [0,1]: %w", name, w, sentinel.ErrInvalidConfig)
		}
		t.weights[name] = w
	}
	if err := t.addAliases(cfg); err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range cfg.Required {
		if _, ok := t.coords[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required zones without coordinates: %s: %w",
			strings.Join(missing, ", "), sentinel.ErrInvalidConfig)
	}
	return t, nil
}

// addAliases runs after the coordinate and weight tables are filled. Aliases
// must point at a coordinate, never at another alias.
func (t *Topology) addAliases(cfg Config) error {
	for alias, canonical := range cfg.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("alias with empty name: %w", sentinel.ErrInvalidConfig)
		}
		if _, dup := cfg.Coordinates[alias]; dup {
			return fmt.Errorf("zone %q is both an alias and a coordinate: %w", alias, sentinel.ErrInvalidConfig)
		}
		p, ok := cfg.Coordinates[canonical]
		if !ok {
			return fmt.Errorf("alias %q points at unknown zone %q: %w", alias, canonical, sentinel.ErrInvalidConfig)
		}
		t.coords[alias] = p
		t.aliases[alias] = canonical
		if _, own := t.weights[alias]; !own {
			if w, ok := t.weights[canonical]; ok {
				t.weights[alias] = w
			}
		}
	}
	return nil
}

// Canonical resolves an alias to its zone. Other names are returned as is.
func (t *Topology) Canonical(zone string) string {
	if c, ok := t.aliases[zone]; ok {
		return c
	}
	return zone
}

// Coordinate returns the zone position and whether the zone is registered.
func (t *Topology) Coordinate(zone string) (Point, bool) {
	p, ok := t.coords[zone]
	return p, ok
}

// Zones returns the registered zone and alias names, sorted.
func (t *Topology) Zones() []string {
	return slices.Sorted(maps.Keys(t.coords))
}

// Weight returns the zone priority, DefaultWeight if the table has none.
func (t *Topology) Weight(zone string) float64 {
	if w, ok := t.weights[zone]; ok {
		return w
	}
	return DefaultWeight
}

// Distance is the Euclidean distance in meters. An unregistered zone sits at
// the origin; the gap is logged once per zone.
func (t *Topology) Distance(a, b string) float64 {
	pa := t.lookup(a)
	pb := t.lookup(b)
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}

func (t *Topology) lookup(zone string) Point {
	if p, ok := t.coords[zone]; ok {
		return p
	}
	t.reportGap(zone)
	return Point{}
}

func (t *Topology) reportGap(zone string) {
	t.gapsMu.Lock()
	_, seen := t.gaps[zone]
	if !seen {
		t.gaps[zone] = struct{}{}
	}
	t.gapsMu.Unlock()
	if !seen && t.logger != nil {
		t.logger.Warn("zone missing from topology, using origin coordinate", "zone", zone)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
