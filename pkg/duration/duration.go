// Package duration parses and formats human-readable durations. It
// accepts everything time.ParseDuration accepts plus spelled-out units
// ("30 seconds", "2 minutes") and day/week units ("1d", "2 weeks").
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day is 24 hours.
const Day = 24 * time.Hour

// Week is 7 days.
const Week = 7 * Day

// unitAliases maps spelled-out and extended unit names to the short unit
// time.ParseDuration understands. Day and week units convert to hours.
var unitAliases = map[string]string{
	"nanosecond": "ns", "nanoseconds": "ns", "nanos": "ns", "nano": "ns",
	"microsecond": "us", "microseconds": "us", "micros": "us", "micro": "us",
	"millisecond": "ms", "milliseconds": "ms", "millis": "ms", "milli": "ms",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
}

// hourMultipliers maps units larger than an hour to their hour count.
var hourMultipliers = map[string]int64{
	"d": 24, "day": 24, "days": 24,
	"w": 7 * 24, "wk": 7 * 24, "wks": 7 * 24, "week": 7 * 24, "weeks": 7 * 24,
}

// tokenPattern matches one number/unit pair with optional whitespace
// between them and a decimal fraction on the number.
var tokenPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([a-zµ]+)`)

// Parse parses a human-readable duration string. Unit names are case
// insensitive and whitespace between value and unit is optional, so
// "90s", "90 seconds" and "1 minute 30 secs" are all accepted.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))

	var normalized strings.Builder
	rest := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := tokenPattern.FindStringSubmatch(match)
		value, unit := parts[1], strings.ToLower(parts[2])
		switch {
		case hourMultipliers[unit] != 0:
			fmt.Fprintf(&normalized, "%sh", scaleHours(value, hourMultipliers[unit]))
		case unitAliases[unit] != "":
			normalized.WriteString(value + unitAliases[unit])
		default:
			// Already a short unit, or invalid; let time.ParseDuration
			// decide.
			normalized.WriteString(value + unit)
		}
		return ""
	})
	if strings.TrimSpace(rest) != "" {
		return 0, fmt.Errorf("duration: cannot parse %q", s)
	}

	d, err := time.ParseDuration(normalized.String())
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// scaleHours multiplies a decimal value string by an hour multiplier,
// keeping fractional inputs like "1.5d" exact.
func scaleHours(value string, mult int64) string {
	if !strings.Contains(value, ".") {
		n, _ := strconv.ParseInt(value, 10, 64)
		return strconv.FormatInt(n*mult, 10)
	}
	f, _ := strconv.ParseFloat(value, 64)
	return strconv.FormatFloat(f*float64(mult), 'g', -1, 64)
}

// MustParse is like Parse but panics on error. For constants only.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders a duration compactly with the largest fitting units,
// omitting zero components: 90*time.Second becomes "1m30s", 26 hours
// becomes "1d2h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder
	for _, step := range []struct {
		unit string
		size time.Duration
	}{
		{"d", Day},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
		{"ms", time.Millisecond},
		{"µs", time.Microsecond},
		{"ns", time.Nanosecond},
	} {
		if n := d / step.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, step.unit)
			d -= n * step.size
		}
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
