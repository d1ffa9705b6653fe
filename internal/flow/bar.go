package flow

import "math"

// maxBarPower bounds a single contribution so the int64 conversion and the
// group sum stay exact
const maxBarPower = 1e12

// Contribution returns the non-negative integer power a bar entry adds to its
// group. Fractional watts are dropped before the sign is applied.
func Contribution(entry BarEntry, data Data) int64 {
	p := data.Get(entry.ID).power()
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	p = math.Max(-maxBarPower, math.Min(maxBarPower, p))
	c := int64(math.Trunc(p)) * int64(signOf(entry.Sign))
	if c < 0 {
		return 0
	}
	return c
}

// BarWidths returns the width percentage of every entry in a bar group.
//
// All entries but the last get round(contribution/sum*100); the last one
// absorbs the remainder so the widths always add up to exactly 100. With a
// zero sum every entry but the last is 0 and the last one is 100.
func BarWidths(entries []BarEntry, data Data) []int {
	if len(entries) == 0 {
		return nil
	}

	contributions := make([]int64, len(entries))
	var sum int64
	for i, e := range entries {
		contributions[i] = Contribution(e, data)
		sum += contributions[i]
	}

	widths := make([]int, len(entries))
	assigned := 0
	for i := range entries {
		if i == len(entries)-1 {
			widths[i] = 100 - assigned
			break
		}
		if sum > 0 {
			widths[i] = roundHalfUp(float64(contributions[i]) / float64(sum) * 100)
		}
		assigned += widths[i]
	}
	return widths
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
