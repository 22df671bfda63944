package device

import (
	"context"
	"errors"
	"time"
)

// Device errors.
var (
	// ErrIncompatible indicates the device offers no usable profile or
	// input format; no encoder instance can be registered for it.
	ErrIncompatible = errors.New("device offers no usable encoder")

	// ErrUnsupportedUpdate indicates the device cannot apply a requested
	// in-place parameter update to a live session.
	ErrUnsupportedUpdate = errors.New("dynamic update not supported by device")

	// ErrSessionClosed indicates an operation on a released session handle.
	ErrSessionClosed = errors.New("session closed")
)

// InfiniteGOPLength configures a session with no periodic keyframes.
const InfiniteGOPLength = ^uint32(0)

// Preset selects a device-defined speed/quality tradeoff.
type Preset int

// Encoding presets.
const (
	PresetDefault Preset = iota
	PresetHP
	PresetHQ
	PresetLowLatencyDefault
	PresetLowLatencyHQ
	PresetLowLatencyHP
	PresetLossless
)

var presetNames = map[Preset]string{
	PresetDefault:           "default",
	PresetHP:                "hp",
	PresetHQ:                "hq",
	PresetLowLatencyDefault: "low-latency",
	PresetLowLatencyHQ:      "low-latency-hq",
	PresetLowLatencyHP:      "low-latency-hp",
	PresetLossless:          "lossless",
}

func (p Preset) String() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return "default"
}

// ParsePreset converts a preset name to a Preset, defaulting to
// PresetDefault for unknown names.
func ParsePreset(s string) Preset {
	for p, name := range presetNames {
		if name == s {
			return p
		}
	}
	return PresetDefault
}

// RateControlMode selects the device's per-frame bit allocation strategy.
type RateControlMode int

// Rate control modes.
const (
	RCModeDefault RateControlMode = iota
	RCModeConstQP
	RCModeCBR
	RCModeVBR
	RCModeCBRLowDelayHQ
	RCModeCBRHQ
	RCModeVBRHQ
)

var rcModeNames = map[RateControlMode]string{
	RCModeDefault:       "default",
	RCModeConstQP:       "constqp",
	RCModeCBR:           "cbr",
	RCModeVBR:           "vbr",
	RCModeCBRLowDelayHQ: "cbr-ld-hq",
	RCModeCBRHQ:         "cbr-hq",
	RCModeVBRHQ:         "vbr-hq",
}

func (m RateControlMode) String() string {
	if name, ok := rcModeNames[m]; ok {
		return name
	}
	return "default"
}

// ParseRCMode converts a rate-control mode name to a RateControlMode,
// defaulting to RCModeDefault for unknown names.
func ParseRCMode(s string) RateControlMode {
	for m, name := range rcModeNames {
		if name == s {
			return m
		}
	}
	return RCModeDefault
}

// EntropyMode selects the entropy coding mode for a session.
type EntropyMode int

// Entropy coding modes.
const (
	EntropyAuto EntropyMode = iota
	EntropyCABAC
	EntropyCAVLC
)

// QPSet holds per-frame-type quantizer values.
type QPSet struct {
	I uint32
	P uint32
	B uint32
}

// RateControlParams is the rate-control portion of a session configuration.
// Bitrate fields are in bits per second.
type RateControlParams struct {
	Mode             RateControlMode
	AverageBitrate   uint64
	MaxBitrate       uint64
	VBVBufferSize    uint64
	ConstQP          QPSet
	EnableMinQP      bool
	MinQP            QPSet
	EnableMaxQP      bool
	MaxQP            QPSet
	TargetQuality    uint8
	TargetQualityLSB uint8
	EnableAQ         bool
	AQStrength       uint32
	TemporalAQ       bool
	EnableLookahead  bool
	LookaheadDepth   uint32
	DisableIAdapt    bool
	DisableBAdapt    bool
	StrictGOP        bool
	NonRefP          bool
	ZeroReorderDelay bool
}

// VUIParams carries colorimetry sideband information into the bitstream.
type VUIParams struct {
	FullRange               bool
	ColourMatrix            int
	ColourPrimaries         int
	TransferCharacteristics int
}

// SessionConfig is the complete hardware initialization descriptor for an
// encode session. It is produced by the session parameter builder and
// consumed verbatim by the device.
type SessionConfig struct {
	Width        int
	Height       int
	MaxWidth     int
	MaxHeight    int
	FrameRateNum int
	FrameRateDen int
	DARWidth     int
	DARHeight    int

	Preset             Preset
	WeightedPrediction bool
	FieldEncoding      bool

	// GOP structure. FrameIntervalP is the distance between consecutive
	// anchor frames: 0 all-intra, 1 IP only, N>1 means N-1 B-frames.
	GOPLength      uint32
	FrameIntervalP int
	IDRPeriod      uint32

	Profile         string
	ChromaFormatIDC int
	OutputAUD       bool
	DisableSPSPPS   bool
	RepeatSPSPPS    bool
	EntropyCoding   EntropyMode

	RateControl RateControlParams
	VUI         VUIParams
}

// Frame is one decoded input picture in presentation order.
type Frame struct {
	Data          []byte
	Format        PixelFormat
	Width         int
	Height        int
	PTS           time.Duration
	ForceKeyframe bool
}

// Output is one raw encoder output buffer: a start-code-delimited access
// unit in submission order.
type Output struct {
	Data     []byte
	Keyframe bool
	PTS      time.Duration
}

// Session is a live encode session handle. It is exclusively owned by the
// encode session state machine; implementations need not be safe for
// concurrent use.
type Session interface {
	// Configure applies the full initialization descriptor. It must be
	// called exactly once before Encode; a rejected descriptor leaves the
	// session unusable.
	Configure(cfg *SessionConfig) error

	// UpdateRateControl applies a lightweight in-place rate-control update
	// to a configured session without teardown. Returns
	// ErrUnsupportedUpdate when the device lacks the capability.
	UpdateRateControl(rc RateControlParams) error

	// Encode submits one frame and returns the completed outputs, in
	// submission order. Device state after an error is undefined.
	Encode(ctx context.Context, f *Frame) ([]Output, error)

	// Drain flushes any outstanding asynchronous completions.
	Drain(ctx context.Context) ([]Output, error)

	// SequenceParams returns the start-code-delimited sequence header
	// (parameter sets) for the configured session.
	SequenceParams() ([]byte, error)

	// Close releases the session handle. Outstanding completions must be
	// drained first.
	Close() error
}

// SessionOpener opens encode sessions on a device. It is the opaque
// open/close collaborator provided by device management.
type SessionOpener interface {
	OpenSession(ctx context.Context) (Session, error)
}

// CapsQuerier exposes a device's capability query surface to the prober.
type CapsQuerier interface {
	// QueryCap returns the value of one capability query.
	QueryCap(ctx context.Context, cap Capability) (int, error)

	// ProfileIDs returns the profiles the device can encode.
	ProfileIDs(ctx context.Context) ([]ProfileID, error)

	// InputFormats returns the raw input formats the device accepts.
	InputFormats(ctx context.Context) ([]PixelFormat, error)
}
