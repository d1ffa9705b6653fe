// Package flow renders the energy-flow view: one row per configured node with
// a direction arrow sized by power, plus two proportional stacked bars that
// summarise where power comes from and where it goes.
//
// Rendering is split in two steps. NewRenderer builds the static Layout once;
// Update turns a data snapshot into a View without touching the layout. Both
// are plain values so the arrow and bar math can be tested without any UI.
package flow

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a flow configuration cannot be rendered
var ErrInvalidConfig = errors.New("invalid flow config")

// Kind selects the default colour and icon of a node or bar segment
type Kind string

const (
	KindPV   Kind = "pv"
	KindHome Kind = "home"
	KindBat  Kind = "bat"
	KindGrid Kind = "grid"
	KindCar  Kind = "car"
	KindHeat Kind = "heat"
)

// DefaultIcons maps each kind to the icon used when no override is given
var DefaultIcons = map[Kind]string{
	KindPV:   "svg-sun",
	KindHome: "svg-house",
	KindBat:  "svg-car-battery",
	KindGrid: "svg-industry",
	KindCar:  "svg-car",
	KindHeat: "svg-fire",
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	_, ok := DefaultIcons[k]
	return ok
}

// BarGroup names one of the two summary bars
type BarGroup string

const (
	BarIn  BarGroup = "in"
	BarOut BarGroup = "out"
)

// BarGroups lists the bar groups in render order
var BarGroups = []BarGroup{BarIn, BarOut}

// Node is one row of the flow table
type Node struct {
	ID      string `yaml:"id" json:"id"`
	Kind    Kind   `yaml:"type" json:"type"`
	Sign    int    `yaml:"sign,omitempty" json:"sign,omitempty"` // -1 inverts the arrow direction
	Icon    string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Wallbox bool   `yaml:"wallbox,omitempty" json:"wallbox,omitempty"`
}

// BarEntry is one segment of a summary bar
type BarEntry struct {
	ID   string `yaml:"id" json:"id"`
	Kind Kind   `yaml:"type" json:"type"`
	Sign int    `yaml:"sign,omitempty" json:"sign,omitempty"` // -1 turns negative power into a positive contribution
	Icon string `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// Config describes the complete flow view. It is supplied once and never
// mutated afterwards.
type Config struct {
	Nodes []Node                  `yaml:"table" json:"table"`
	Bars  map[BarGroup][]BarEntry `yaml:"bar" json:"bar"`
}

// Validate checks the configuration for duplicate ids, unknown kinds and
// signs other than +1/-1 (0 is accepted and means +1).
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has no id", ErrInvalidConfig, i)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidConfig, n.ID)
		}
		seen[n.ID] = true
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %q has unknown type %q", ErrInvalidConfig, n.ID, n.Kind)
		}
		if !validSign(n.Sign) {
			return fmt.Errorf("%w: node %q has sign %d", ErrInvalidConfig, n.ID, n.Sign)
		}
	}

	for group, entries := range c.Bars {
		if group != BarIn && group != BarOut {
			return fmt.Errorf("%w: unknown bar group %q", ErrInvalidConfig, group)
		}
		for i, e := range entries {
			if e.ID == "" {
				return fmt.Errorf("%w: bar %s entry %d has no id", ErrInvalidConfig, group, i)
			}
			if !e.Kind.Valid() {
				return fmt.Errorf("%w: bar %s entry %q has unknown type %q", ErrInvalidConfig, group, e.ID, e.Kind)
			}
			if !validSign(e.Sign) {
				return fmt.Errorf("%w: bar %s entry %q has sign %d", ErrInvalidConfig, group, e.ID, e.Sign)
			}
		}
	}
	return nil
}

func validSign(s int) bool {
	return s == 0 || s == 1 || s == -1
}

func signOf(s int) float64 {
	if s < 0 {
		return -1
	}
	return 1
}

func iconFor(kind Kind, override string) string {
	if override != "" {
		return override
	}
	return DefaultIcons[kind]
}

// DefaultConfig returns the standard installation layout: PV, home, battery
// and grid rows, with an in-bar of sources and an out-bar of consumers.
func DefaultConfig() Config {
	return Config{
		Nodes: []Node{
			{ID: "pv", Kind: KindPV},
			{ID: "home", Kind: KindHome, Sign: -1},
			{ID: "bat", Kind: KindBat, Sign: -1},
			{ID: "grid", Kind: KindGrid},
		},
		Bars: map[BarGroup][]BarEntry{
			BarIn: {
				{ID: "pv", Kind: KindPV},
				{ID: "bat", Kind: KindBat, Sign: -1},
				{ID: "grid", Kind: KindGrid},
			},
			BarOut: {
				{ID: "home", Kind: KindHome},
				{ID: "car", Kind: KindCar},
				{ID: "heat", Kind: KindHeat},
				{ID: "bat", Kind: KindBat},
				{ID: "grid", Kind: KindGrid, Sign: -1},
			},
		},
	}
}
