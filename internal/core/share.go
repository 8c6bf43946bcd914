package core

import "math"

// ShareTolerance is how far a share total may drift from 100 and still
// round to 100.00.
const ShareTolerance = 0.005

// Share is one participant's percentage of a shared cost.
type Share struct {
	Participant string
	Percent     float64
}

// ShareResult maps participants to percentages, preserving participant order.
type ShareResult struct {
	Mode   ShareMode
	Shares []Share
}

// Total is the unrounded sum of all percentages.
func (r ShareResult) Total() float64 {
	var total float64
	for _, s := range r.Shares {
		total += s.Percent
	}
	return total
}

// Percent returns the share of a participant and whether it is present.
func (r ShareResult) Percent(name string) (float64, bool) {
	for _, s := range r.Shares {
		if s.Participant == name {
			return s.Percent, true
		}
	}
	return 0, false
}

func (r ShareResult) Map() map[string]float64 {
	out := make(map[string]float64, len(r.Shares))
	for _, s := range r.Shares {
		out[s.Participant] = s.Percent
	}
	return out
}

func (r ShareResult) IsEmpty() bool {
	return len(r.Shares) == 0
}

// Validate rejects a non-empty result whose total does not round to 100.
// Results are never re-normalized here.
func (r ShareResult) Validate() error {
	if r.IsEmpty() {
		return nil
	}
	for _, s := range r.Shares {
		if s.Percent < 0 || s.Percent > 100 || math.IsNaN(s.Percent) {
			return ErrSharesDoNotSum
		}
	}
	if math.Abs(r.Total()-100) > ShareTolerance {
		return ErrSharesDoNotSum
	}
	return nil
}
