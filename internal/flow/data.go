package flow

import (
	"math"
	"strconv"
)

// PowerPlaceholder is shown when a node has no numeric power value
const PowerPlaceholder = "--- W"

// NodeData is the per-node part of a data snapshot. Every field is optional.
type NodeData struct {
	Power          *float64 `json:"power,omitempty"`
	Info           *string  `json:"info,omitempty"`
	Subline        *string  `json:"subline,omitempty"`
	Error          *bool    `json:"error,omitempty"`
	Disable        *bool    `json:"disable,omitempty"`
	WallboxPVReady *bool    `json:"wallbox_pvready,omitempty"`
	WallboxStop    *bool    `json:"wallbox_stop,omitempty"`
	WallboxAmp     *string  `json:"wallbox_amp,omitempty"`
}

// Data maps node ids to their values. A nil Data is an empty snapshot.
type Data map[string]NodeData

// Get returns the data of one node, empty when absent
func (d Data) Get(id string) NodeData {
	if d == nil {
		return NodeData{}
	}
	return d[id]
}

func (n NodeData) power() float64 {
	if n.Power == nil {
		return 0
	}
	return *n.Power
}

func (n NodeData) powerText() string {
	if n.Power == nil || math.IsNaN(*n.Power) {
		return PowerPlaceholder
	}
	return strconv.FormatFloat(math.Abs(*n.Power), 'f', -1, 64) + " W"
}

func (n NodeData) iconState() IconState {
	switch {
	case n.Error != nil && *n.Error:
		return IconError
	case n.Disable != nil && *n.Disable:
		return IconDisabled
	default:
		return IconEnabled
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Float is a convenience for building NodeData literals
func Float(v float64) *float64 { return &v }

// String is a convenience for building NodeData literals
func String(v string) *string { return &v }

// Bool is a convenience for building NodeData literals
func Bool(v bool) *bool { return &v }
