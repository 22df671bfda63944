package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwenc/internal/device"
	"github.com/jmylchreest/hwenc/internal/device/devicesim"
)

func TestProbe_Defaults(t *testing.T) {
	dev := devicesim.New()

	caps, err := device.Probe(context.Background(), dev, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, caps.MaxBFrames)
	assert.Equal(t, 1, caps.CABAC)
	assert.Equal(t, 4096, caps.WidthMax)
	assert.Equal(t, 16, caps.WidthMin)
	assert.Equal(t, 1, caps.DynBitrateChange)
	assert.Len(t, caps.Profiles, 6)
	assert.Contains(t, caps.InputFormats, device.FormatNV12)
	assert.Contains(t, caps.InputFormats, device.FormatY444)
}

func TestProbe_FailedQueryUsesDefault(t *testing.T) {
	dev := devicesim.New(
		devicesim.WithCapFailure(device.CapWidthMax),
		devicesim.WithCapFailure(device.CapRateControlModes),
		devicesim.WithCapFailure(device.CapCABAC),
	)

	caps, err := device.Probe(context.Background(), dev, nil)
	require.NoError(t, err)

	// Resolution bounds fall back to the conventional range, rate control
	// to VBR, feature queries to unsupported.
	assert.Equal(t, 4096, caps.WidthMax)
	assert.Equal(t, int(device.RCModeVBR), caps.RateControlModes)
	assert.Equal(t, 0, caps.CABAC)
}

func TestProbe_NoProfiles(t *testing.T) {
	dev := devicesim.New(devicesim.WithProfiles())

	_, err := device.Probe(context.Background(), dev, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrIncompatible)
}

func TestProbe_Y444FilteredWithoutCap(t *testing.T) {
	dev := devicesim.New(devicesim.WithCap(device.CapYUV444Encode, 0))

	caps, err := device.Probe(context.Background(), dev, nil)
	require.NoError(t, err)

	assert.Contains(t, caps.InputFormats, device.FormatNV12)
	assert.NotContains(t, caps.InputFormats, device.FormatY444)
}

func TestProbe_NoUsableFormat(t *testing.T) {
	dev := devicesim.New(
		devicesim.WithFormats(device.FormatY444),
		devicesim.WithCap(device.CapYUV444Encode, 0),
	)

	_, err := device.Probe(context.Background(), dev, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrIncompatible)
}

func TestCapabilities_SupportsFormat(t *testing.T) {
	caps := device.Capabilities{InputFormats: []device.PixelFormat{device.FormatNV12}}

	assert.True(t, caps.SupportsFormat(device.FormatNV12))
	assert.False(t, caps.SupportsFormat(device.FormatY444))
}
