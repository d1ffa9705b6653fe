package flow

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// ArrowFullScale is the power in watt drawn as the largest arrow
	ArrowFullScale = 2000.0

	minStroke   = 5.0
	maxStroke   = 20.0
	minLength   = 10.0
	arrowBudget = 50.0 // half of the 100x100 icon viewbox
)

// ArrowView is the visual state of one row arrow
type ArrowView struct {
	Path        string  `json:"path"`
	StrokeWidth float64 `json:"stroke_width"`
	Length      float64 `json:"length"`
	Direction   int     `json:"direction"`
	Percent     float64 `json:"percent"`
}

// Empty reports whether no arrow is drawn
func (a ArrowView) Empty() bool {
	return a.Path == ""
}

// Arrow sizes the arrow for a signed power value in watt. The magnitude is
// normalised against ArrowFullScale and clamped to 100%. The stroke width is
// scaled into [5, 20] first, and the arrow length into [10, 50-stroke] so
// the tip never collides with the stroke inside the viewbox.
func Arrow(power float64) ArrowView {
	value := power / ArrowFullScale * 100
	if math.IsNaN(value) || value == 0 {
		return ArrowView{}
	}
	value = math.Max(-100, math.Min(100, value))

	magnitude := math.Abs(value)
	stroke := scaleValue(magnitude, minStroke, maxStroke)
	length := scaleValue(magnitude, minLength, arrowBudget-stroke)

	direction := 1
	if value < 0 {
		direction = -1
	}

	// positive power points the tip to the left, towards the icon
	d := length * float64(-direction)

	return ArrowView{
		Path: fmt.Sprintf("M %s %s L %s 0 L %s %s",
			formatCoord(-d/2), formatCoord(-d),
			formatCoord(d/2),
			formatCoord(-d/2), formatCoord(d)),
		StrokeWidth: stroke,
		Length:      length,
		Direction:   direction,
		Percent:     value,
	}
}

// scaleValue maps a 0..100 percentage linearly onto [min, max]
func scaleValue(value, min, max float64) float64 {
	v := (max-min)*value/100 + min
	if v > max {
		v = max
	}
	return v
}

// formatCoord prints a path coordinate with at most four decimals
func formatCoord(v float64) string {
	v = math.Round(v*10000) / 10000
	if v == 0 {
		v = 0 // no "-0" in the path
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
