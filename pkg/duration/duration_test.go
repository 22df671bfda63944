package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"1.5h", 90 * time.Minute},
		{"500ms", 500 * time.Millisecond},
		{"30 seconds", 30 * time.Second},
		{"2 minutes", 2 * time.Minute},
		{"1 minute 30 secs", 90 * time.Second},
		{"3 hours", 3 * time.Hour},
		{"1d", Day},
		{"2 days", 2 * Day},
		{"1.5d", 36 * time.Hour},
		{"1 week", Week},
		{"1w2d", Week + 2*Day},
		{"1d12h", 36 * time.Hour},
		{"-30s", -30 * time.Second},
		{"- 1 minute", -time.Minute},
		{"5 MINUTES", 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "abc", "90", "1 fortnight", "s30"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bogus") })
	assert.Equal(t, time.Minute, MustParse("1 minute"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "0s"},
		{90 * time.Second, "1m30s"},
		{time.Hour, "1h"},
		{26 * time.Hour, "1d2h"},
		{Week, "7d"},
		{time.Hour + 10*time.Second, "1h10s"},
		{1500 * time.Microsecond, "1ms500µs"},
		{-90 * time.Second, "-1m30s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Second, 90 * time.Minute, 3*Day + 4*time.Hour} {
		got, err := Parse(Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}
