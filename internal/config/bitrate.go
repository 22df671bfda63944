package config

import (
	"encoding/json"

	"github.com/jmylchreest/hwenc/pkg/bitrate"
)

// BitRate is a bit rate value that supports human-readable parsing.
// It extends raw bits-per-second integers with support for SI units.
//
// Examples:
//   - "6mbps" = 6000000 bps
//   - "800k" = 800000 bps
//   - "4000" = 4000 bps (raw number still works)
//
// This type implements encoding.TextUnmarshaler for Viper/YAML support
// and json.Unmarshaler for JSON configuration files.
type BitRate int64

// ParseBitRate parses a human-readable bit rate string.
func ParseBitRate(s string) (BitRate, error) {
	r, err := bitrate.Parse(s)
	if err != nil {
		return 0, err
	}
	return BitRate(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML/Viper support.
func (b *BitRate) UnmarshalText(text []byte) error {
	parsed, err := ParseBitRate(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BitRate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as a number (bits per second) for backwards compatibility
		var bits int64
		if err := json.Unmarshal(data, &bits); err != nil {
			return err
		}
		*b = BitRate(bits)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (b BitRate) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (b BitRate) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// BitsPerSecond returns the rate in bits per second.
func (b BitRate) BitsPerSecond() int64 {
	return int64(b)
}

// Kilobits returns the rate in whole kilobits per second.
func (b BitRate) Kilobits() int64 {
	return bitrate.Rate(b).Kilobits()
}

// String returns a human-readable string representation.
func (b BitRate) String() string {
	return bitrate.Format(bitrate.Rate(b))
}
