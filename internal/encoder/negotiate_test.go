package encoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwenc/internal/device"
	"github.com/jmylchreest/hwenc/internal/device/devicesim"
)

func probedCaps(t *testing.T, opts ...devicesim.Option) device.Capabilities {
	t.Helper()
	caps, err := device.Probe(context.Background(), devicesim.New(opts...), nil)
	require.NoError(t, err)
	return caps
}

func nv12Request() FormatRequest {
	return FormatRequest{
		Format: device.FormatNV12,
		Width:  1280,
		Height: 720,
		FPSNum: 30,
		FPSDen: 1,
		PARNum: 1,
		PARDen: 1,
	}
}

func TestNegotiate_EmptyDownstream(t *testing.T) {
	caps := probedCaps(t)

	nf, err := Negotiate(caps, nil, nv12Request())
	require.NoError(t, err)

	assert.Equal(t, ProfileMain, nf.Profile)
	assert.True(t, nf.BFramesAllowed)
	assert.Equal(t, device.FormatNV12, nf.Format)
}

func TestNegotiate_FixedPriority(t *testing.T) {
	caps := probedCaps(t)

	tests := []struct {
		offer []Profile
		want  Profile
	}{
		{[]Profile{ProfileHigh, ProfileMain}, ProfileMain},
		{[]Profile{ProfileHigh, ProfileBaseline}, ProfileHigh},
		{[]Profile{ProfileBaseline, ProfileConstrainedBaseline}, ProfileConstrainedBaseline},
		{[]Profile{ProfileBaseline}, ProfileBaseline},
		{[]Profile{ProfileHigh444}, ProfileHigh444},
	}
	for _, tt := range tests {
		nf, err := Negotiate(caps, NewProfileSet(tt.offer...), nv12Request())
		require.NoError(t, err)
		assert.Equal(t, tt.want, nf.Profile, "offer %v", tt.offer)
	}
}

func TestNegotiate_NoCommonProfile(t *testing.T) {
	caps := probedCaps(t, devicesim.WithProfiles(device.ProfileIDMain))

	_, err := Negotiate(caps, NewProfileSet(ProfileHigh444), nv12Request())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNegotiate_ResolutionBounds(t *testing.T) {
	caps := probedCaps(t)

	req := nv12Request()
	req.Width = 8192
	_, err := Negotiate(caps, nil, req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	req = nv12Request()
	req.Height = 8
	_, err = Negotiate(caps, nil, req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNegotiate_Y444(t *testing.T) {
	caps := probedCaps(t)

	req := nv12Request()
	req.Format = device.FormatY444

	// 4:4:4 input requires the 4:4:4 profile in the offer.
	_, err := Negotiate(caps, NewProfileSet(ProfileMain), req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	nf, err := Negotiate(caps, NewProfileSet(ProfileMain, ProfileHigh444), req)
	require.NoError(t, err)
	assert.Equal(t, ProfileHigh444, nf.Profile)
	assert.True(t, nf.BFramesAllowed)
}

func TestNegotiate_Interlaced(t *testing.T) {
	caps := probedCaps(t)

	req := nv12Request()
	req.Interlaced = true

	// Progressive-only profiles are filtered from the offer.
	nf, err := Negotiate(caps, NewProfileSet(ProfileMain, ProfileConstrainedBaseline), req)
	require.NoError(t, err)
	assert.Equal(t, ProfileMain, nf.Profile)
	assert.True(t, nf.Interlaced)

	_, err = Negotiate(caps, NewProfileSet(ProfileConstrainedBaseline), req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNegotiate_InterlacedNeedsFieldEncoding(t *testing.T) {
	caps := probedCaps(t, devicesim.WithCap(device.CapFieldEncoding, 0))

	req := nv12Request()
	req.Interlaced = true
	_, err := Negotiate(caps, NewProfileSet(ProfileMain), req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNegotiate_MultiFrameGOPPreference(t *testing.T) {
	caps := probedCaps(t)

	req := nv12Request()
	req.MultiFrameGOP = true

	// High-efficiency profiles win over the fixed priority order.
	nf, err := Negotiate(caps, NewProfileSet(ProfileConstrainedBaseline, ProfileHigh), req)
	require.NoError(t, err)
	assert.Equal(t, ProfileHigh, nf.Profile)

	// Without an eligible profile the fixed order still applies.
	nf, err = Negotiate(caps, NewProfileSet(ProfileConstrainedBaseline), req)
	require.NoError(t, err)
	assert.Equal(t, ProfileConstrainedBaseline, nf.Profile)
	assert.False(t, nf.BFramesAllowed)
}

func TestNegotiate_BaselineDisallowsBFrames(t *testing.T) {
	caps := probedCaps(t)

	nf, err := Negotiate(caps, NewProfileSet(ProfileBaseline, ProfileConstrainedBaseline), nv12Request())
	require.NoError(t, err)
	assert.False(t, nf.BFramesAllowed)
}

func TestProposeFormats(t *testing.T) {
	caps := probedCaps(t)

	space := ProposeFormats(caps, nil)
	assert.Contains(t, space.Formats, device.FormatNV12)
	assert.Contains(t, space.Formats, device.FormatY444)
	assert.Equal(t, []string{"progressive", "interleaved", "mixed"}, space.InterlaceModes)
	assert.Equal(t, 16, space.WidthMin)
	assert.Equal(t, 4096, space.WidthMax)

	// A baseline-class offer restricts to progressive 4:2:0.
	space = ProposeFormats(caps, NewProfileSet(ProfileConstrainedBaseline))
	assert.Equal(t, []device.PixelFormat{device.FormatNV12}, space.Formats)
	assert.Equal(t, []string{"progressive"}, space.InterlaceModes)
}

func TestProfileFromSPS(t *testing.T) {
	tests := []struct {
		name  string
		sps   []byte
		want  Profile
		isErr bool
	}{
		{"baseline", []byte{0x67, 66, 0x00, 0x28}, ProfileBaseline, false},
		{"constrained-baseline", []byte{0x67, 66, 0x40, 0x28}, ProfileConstrainedBaseline, false},
		{"main", []byte{0x67, 77, 0x00, 0x28}, ProfileMain, false},
		{"high", []byte{0x67, 100, 0x00, 0x28}, ProfileHigh, false},
		{"progressive-high", []byte{0x67, 100, 0x08, 0x28}, ProfileProgressiveHigh, false},
		{"constrained-high", []byte{0x67, 100, 0x0c, 0x28}, ProfileConstrainedHigh, false},
		{"high-4:4:4", []byte{0x67, 244, 0x00, 0x28}, ProfileHigh444, false},
		{"unknown", []byte{0x67, 88, 0x00, 0x28}, "", true},
		{"short", []byte{0x67, 77}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProfileFromSPS(tt.sps)
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestResolveProfileName(t *testing.T) {
	// The downstream alias wins when the parsed name differs only through
	// known aliasing.
	got := resolveProfileName(ProfileConstrainedBaseline, NewProfileSet(ProfileBaseline))
	assert.Equal(t, ProfileBaseline, got)

	got = resolveProfileName(ProfileConstrainedBaseline, NewProfileSet(ProfileConstrainedBaseline))
	assert.Equal(t, ProfileConstrainedBaseline, got)

	got = resolveProfileName(ProfileMain, nil)
	assert.Equal(t, ProfileMain, got)
}
