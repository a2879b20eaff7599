// Package etafmt validates and renders estimated-time-of-arrival minutes as
// Swedish phrases for the bridge text generator.
package etafmt

import (
	"fmt"
	"math"
)

// MaxMinutes is the upper bound of a plausible ETA; beyond this IsValid
// rejects the estimate and the bridge text omits it.
const MaxMinutes = 180

// IsValid reports whether eta is a finite number in [0, MaxMinutes].
func IsValid(eta float64) bool {
	if math.IsNaN(eta) || math.IsInf(eta, 0) {
		return false
	}
	return eta >= 0 && eta <= MaxMinutes
}

// Format renders eta minutes as the Swedish phrase used inside bridge text
// templates, e.g. "om 4 minuter". Callers must check IsValid first; an
// invalid eta formats as the empty string.
func Format(eta float64) string {
	if !IsValid(eta) {
		return ""
	}
	switch {
	case eta < 1:
		return "om mindre än 1 minut"
	case eta < 1.5:
		return "om 1 minut"
	default:
		n := int(math.Round(eta))
		if n == 1 {
			return "om 1 minut"
		}
		return fmt.Sprintf("om %d minuter", n)
	}
}

// Display renders a debug-only form of eta; never used in user-facing text.
func Display(eta float64) string {
	if !IsValid(eta) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f min", eta)
}
