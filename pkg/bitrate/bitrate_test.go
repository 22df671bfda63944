package bitrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Rate
	}{
		{"0", 0},
		{"4000", 4000},
		{"800k", 800 * Kbps},
		{"800kbps", 800 * Kbps},
		{"800 kbit", 800 * Kbps},
		{"6m", 6 * Mbps},
		{"6mbps", 6 * Mbps},
		{"6 Mbps", 6 * Mbps},
		{"2.5mbps", Rate(2.5 * float64(Mbps))},
		{"1g", Gbps},
		{"1.5Gbps", Rate(1.5 * float64(Gbps))},
		{"100bps", 100},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	invalid := []string{"", "fast", "6q", "mbps", "-5m", "6 m bps"}
	for _, input := range invalid {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("notarate") })
	assert.Equal(t, 6*Mbps, MustParse("6mbps"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		rate     Rate
		expected string
	}{
		{0, "0bps"},
		{500, "500bps"},
		{800 * Kbps, "800kbps"},
		{6 * Mbps, "6Mbps"},
		{2*Mbps + 500*Kbps, "2.5Mbps"},
		{Gbps, "1Gbps"},
		{-800 * Kbps, "-800kbps"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.rate))
		})
	}
}

func TestRate_Kilobits(t *testing.T) {
	assert.Equal(t, int64(6000), (6 * Mbps).Kilobits())
	assert.Equal(t, int64(0), Rate(999).Kilobits())
}

func TestRoundTrip(t *testing.T) {
	for _, r := range []Rate{800 * Kbps, 6 * Mbps, Gbps} {
		parsed, err := Parse(Format(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}
