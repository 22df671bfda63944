// Package bitrate provides human-readable bit rate parsing and formatting.
// It uses SI (1000) multipliers, matching how video bit rates are quoted.
//
// Supported units (case-insensitive):
//   - bps: bits per second
//   - kbps/k/kbit: kilobits per second (1000 bps)
//   - mbps/m/mbit: megabits per second (1000^2 bps)
//   - gbps/g/gbit: gigabits per second (1000^3 bps)
//
// Examples:
//   - "6mbps" = 6_000_000 bps
//   - "800k" = 800_000 bps
//   - "2.5 Mbps" = 2_500_000 bps
//   - "4000" = 4000 bps (no unit = bits per second)
package bitrate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rate represents a bit rate in bits per second.
type Rate int64

// Common rate constants using SI (1000) base.
const (
	BitPerSecond  Rate = 1
	Kbps               = 1000 * BitPerSecond
	Mbps               = 1000 * Kbps
	Gbps               = 1000 * Mbps
)

// unitMultipliers maps unit names to their bits-per-second multiplier.
var unitMultipliers = map[string]Rate{
	"bps": BitPerSecond,
	"bit": BitPerSecond,

	"k":    Kbps,
	"kbps": Kbps,
	"kbit": Kbps,

	"m":    Mbps,
	"mbps": Mbps,
	"mbit": Mbps,

	"g":    Gbps,
	"gbps": Gbps,
	"gbit": Gbps,
}

// ratePattern matches a number (int or float) followed by an optional unit.
var ratePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a human-readable bit rate string.
// Supports integer and floating-point values with optional units.
// If no unit is specified, bits per second are assumed.
//
// Examples:
//   - "6mbps" → 6000000
//   - "800k" → 800000
//   - "2.5 Mbps" → 2500000
func Parse(s string) (Rate, error) {
	if s == "" {
		return 0, fmt.Errorf("bitrate: empty string")
	}

	matches := ratePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("bitrate: invalid format %q", s)
	}

	valueStr := matches[1]
	unitStr := strings.ToLower(matches[2])

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("bitrate: invalid number %q: %w", valueStr, err)
	}

	multiplier := BitPerSecond
	if unitStr != "" {
		var ok bool
		multiplier, ok = unitMultipliers[unitStr]
		if !ok {
			return 0, fmt.Errorf("bitrate: unknown unit %q", unitStr)
		}
	}

	return Rate(value * float64(multiplier)), nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for compile-time constants.
func MustParse(s string) Rate {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Format converts a bit rate to a human-readable string.
// Uses the largest unit that results in a value >= 1.
func Format(r Rate) string {
	if r == 0 {
		return "0bps"
	}

	negative := r < 0
	if negative {
		r = -r
	}

	var result string
	switch {
	case r >= Gbps:
		result = formatFloat(float64(r)/float64(Gbps), "Gbps")
	case r >= Mbps:
		result = formatFloat(float64(r)/float64(Mbps), "Mbps")
	case r >= Kbps:
		result = formatFloat(float64(r)/float64(Kbps), "kbps")
	default:
		result = fmt.Sprintf("%dbps", r)
	}

	if negative {
		result = "-" + result
	}
	return result
}

// formatFloat renders a value with up to two decimal places, trimming
// trailing zeros.
func formatFloat(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + unit
}

// BitsPerSecond returns the rate in bits per second.
func (r Rate) BitsPerSecond() int64 {
	return int64(r)
}

// Kilobits returns the rate in whole kilobits per second, rounding down.
func (r Rate) Kilobits() int64 {
	return int64(r) / int64(Kbps)
}

// String returns a human-readable string representation.
func (r Rate) String() string {
	return Format(r)
}
