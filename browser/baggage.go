// Package browser drives real browser sessions against the storefront and
// tags every request they make as synthetic.
package browser

import "strings"

// SyntheticMarker is the baggage member added to every browser request.
const SyntheticMarker = "synthetic_request=true"

// BaggageHeader is the W3C correlation header carrying the marker.
const BaggageHeader = "baggage"

// AppendSyntheticMarker returns existing with the synthetic marker appended
// as the last member. A blank header yields the marker alone; any other
// value is kept as sent.
func AppendSyntheticMarker(existing string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return SyntheticMarker
	}
	return existing + ", " + SyntheticMarker
}
