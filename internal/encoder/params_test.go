package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwenc/internal/device"
	"github.com/jmylchreest/hwenc/internal/device/devicesim"
)

func TestParameters_Defaults(t *testing.T) {
	caps := probedCaps(t)
	p := NewParameters(caps)

	v := p.Values()
	assert.Equal(t, device.PresetDefault, v.Preset)
	assert.Equal(t, DefaultGOPSize, v.GOPSize)
	assert.Equal(t, uint(0), v.BFrames)
	assert.Equal(t, device.RCModeVBR, v.RCMode)
	assert.Equal(t, QPUnset, v.QPConstI)
	assert.Equal(t, QPUnset, v.QPMinI)
	assert.Equal(t, QPUnset, v.QPMaxB)
	assert.True(t, v.AUD)
	assert.True(t, v.CABAC, "device supports CABAC")
	assert.False(t, v.RepeatSequenceHeader)
	assert.Zero(t, p.Dirty())
}

func TestParameters_CABACDefaultFollowsCap(t *testing.T) {
	caps := probedCaps(t, devicesim.WithCap(device.CapCABAC, 0))
	p := NewParameters(caps)

	assert.False(t, p.Values().CABAC)
}

func TestParameters_DirtyLevels(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  DirtyFlags
	}{
		{"preset", "hq", DirtyInitParam},
		{"gop-size", 120, DirtyInitParam},
		{"bframes", 2, DirtyInitParam},
		{"rc-lookahead", 8, DirtyInitParam},
		{"aud", false, DirtyInitParam},
		{"cabac", false, DirtyInitParam},
		{"repeat-sequence-header", true, DirtyInitParam},
		{"weighted-pred", true, DirtyInitParam},
		{"rc-mode", "cbr", DirtyRateControl},
		{"qp-const-i", 28, DirtyRateControl},
		{"qp-min-p", 10, DirtyRateControl},
		{"qp-max-b", 40, DirtyRateControl},
		{"vbv-buffer-size", 4000, DirtyRateControl},
		{"spatial-aq", true, DirtyRateControl},
		{"temporal-aq", true, DirtyRateControl},
		{"aq-strength", 8, DirtyRateControl},
		{"zerolatency", true, DirtyRateControl},
		{"nonref-p", true, DirtyRateControl},
		{"strict-gop", true, DirtyRateControl},
		{"i-adapt", true, DirtyRateControl},
		{"b-adapt", true, DirtyRateControl},
		{"const-quality", 32.5, DirtyRateControl},
		{"bitrate", 4000, DirtyBitrate},
		{"max-bitrate", 6000, DirtyBitrate},
	}

	caps := probedCaps(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParameters(caps)
			require.NoError(t, p.Set(tt.name, tt.value))
			assert.Equal(t, tt.want, p.Dirty())
		})
	}
}

func TestParameters_NoDirtyOnSameValue(t *testing.T) {
	p := NewParameters(probedCaps(t))

	require.NoError(t, p.Set("gop-size", DefaultGOPSize))
	assert.Zero(t, p.Dirty())

	require.NoError(t, p.Set("gop-size", 30))
	assert.Equal(t, DirtyInitParam, p.Dirty())
}

func TestParameters_TakeDirtyClears(t *testing.T) {
	p := NewParameters(probedCaps(t))

	require.NoError(t, p.Set("bitrate", 4000))
	require.NoError(t, p.Set("rc-mode", "cbr"))

	v, dirty := p.takeDirty()
	assert.Equal(t, DirtyBitrate|DirtyRateControl, dirty)
	assert.Equal(t, uint(4000), v.Bitrate)
	assert.Equal(t, device.RCModeCBR, v.RCMode)

	_, dirty = p.takeDirty()
	assert.Zero(t, dirty)
}

func TestParameters_StringConversion(t *testing.T) {
	p := NewParameters(probedCaps(t))

	// CLI and config deliver values as strings.
	require.NoError(t, p.Set("gop-size", "30"))
	require.NoError(t, p.Set("spatial-aq", "true"))
	require.NoError(t, p.Set("const-quality", "32.5"))

	v := p.Values()
	assert.Equal(t, 30, v.GOPSize)
	assert.True(t, v.SpatialAQ)
	assert.Equal(t, 32.5, v.ConstQuality)

	assert.Error(t, p.Set("gop-size", "fast"))
}

func TestParameters_RangeValidation(t *testing.T) {
	p := NewParameters(probedCaps(t))

	assert.Error(t, p.Set("qp-max-i", 99))
	assert.Error(t, p.Set("qp-min-i", -2))
	assert.Error(t, p.Set("const-quality", 60.0))
	assert.Error(t, p.Set("aq-strength", 16))

	// bframes is bounded by the device capability.
	assert.Error(t, p.Set("bframes", 10))
	assert.NoError(t, p.Set("bframes", 4))
}

func TestParameters_UnknownProperty(t *testing.T) {
	p := NewParameters(probedCaps(t))

	err := p.Set("quantizer", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProperty)

	var perr *PropertyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "quantizer", perr.Name)

	_, err = p.Get("quantizer")
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestParameters_CapabilityGating(t *testing.T) {
	caps := probedCaps(t,
		devicesim.WithCap(device.CapTemporalAQ, 0),
		devicesim.WithCap(device.CapMaxBFrames, 0),
		devicesim.WithCap(device.CapLookahead, 0),
	)
	p := NewParameters(caps)

	for _, name := range []string{"temporal-aq", "bframes", "rc-lookahead", "i-adapt", "b-adapt"} {
		err := p.Set(name, 1)
		assert.ErrorIs(t, err, ErrUnknownProperty, name)
	}

	names := p.Names()
	assert.NotContains(t, names, "temporal-aq")
	assert.NotContains(t, names, "bframes")
	assert.Contains(t, names, "gop-size")
	assert.Contains(t, names, "spatial-aq")
}

func TestParameters_Get(t *testing.T) {
	p := NewParameters(probedCaps(t))

	require.NoError(t, p.Set("rc-mode", "cbr"))
	got, err := p.Get("rc-mode")
	require.NoError(t, err)
	assert.Equal(t, "cbr", got)

	got, err = p.Get("preset")
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	got, err = p.Get("qp-const-i")
	require.NoError(t, err)
	assert.Equal(t, QPUnset, got)
}

func TestParameters_BuildConfigAppliesOverrides(t *testing.T) {
	caps := probedCaps(t)
	p := NewParameters(caps)
	require.NoError(t, p.Set("bframes", 2))

	var overridden []string
	p.SetOverrideNotify(func(name string) { overridden = append(overridden, name) })

	format := NegotiatedFormat{
		Profile: ProfileBaseline,
		Format:  device.FormatNV12,
		Width:   1280, Height: 720,
		FPSNum: 30, FPSDen: 1,
		BFramesAllowed: false,
	}
	cfg, overrides := p.buildConfig(format)

	assert.Equal(t, []string{"bframes"}, overrides)
	assert.Equal(t, []string{"bframes"}, overridden)
	assert.Equal(t, 1, cfg.FrameIntervalP)
	assert.Equal(t, uint(0), p.Values().BFrames, "override is written back")
	assert.Zero(t, p.Dirty())
}
