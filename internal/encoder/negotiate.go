package encoder

import (
	"fmt"

	"github.com/jmylchreest/hwenc/internal/device"
)

// StreamFormat is the downstream-accepted output framing.
type StreamFormat string

// Stream formats.
const (
	// StreamFormatByteStream emits start-code-delimited units unmodified.
	StreamFormatByteStream StreamFormat = "byte-stream"
	// StreamFormatPacketized emits length-prefixed units with parameter
	// sets carried out-of-band in a codec description blob.
	StreamFormatPacketized StreamFormat = "packetized"
)

// FormatRequest describes the input the caller wants to encode.
type FormatRequest struct {
	Format     device.PixelFormat
	Width      int
	Height     int
	FPSNum     int
	FPSDen     int
	PARNum     int
	PARDen     int
	Interlaced bool

	// MultiFrameGOP is set when the current parameters request a GOP
	// structure with more than one frame between anchors (B-frames), which
	// biases profile selection toward the high-efficiency profiles.
	MultiFrameGOP bool

	// Colorimetry passthrough into the bitstream VUI.
	FullRange               bool
	ColourMatrix            int
	ColourPrimaries         int
	TransferCharacteristics int
}

// NegotiatedFormat is the active encoding contract: the intersection of
// device capabilities, the downstream profile offer, and the requested
// input format. Every field is a subset of both sides.
type NegotiatedFormat struct {
	Profile        Profile
	Format         device.PixelFormat
	Width          int
	Height         int
	FPSNum         int
	FPSDen         int
	PARNum         int
	PARDen         int
	Interlaced     bool
	BFramesAllowed bool

	// Downstream is the filtered downstream offer, retained for
	// profile-name aliasing on the output descriptor.
	Downstream ProfileSet

	// Request colorimetry, carried through to the session config.
	FullRange               bool
	ColourMatrix            int
	ColourPrimaries         int
	TransferCharacteristics int
}

// Negotiate intersects device capabilities, the downstream profile offer,
// and the requested format into the active encoding contract. It is a pure
// function: no side effects, deterministic output.
//
// An empty downstream offer falls back to the full capability-derived
// profile set, deferring restriction to a later negotiation round.
func Negotiate(caps device.Capabilities, downstream ProfileSet, req FormatRequest) (NegotiatedFormat, error) {
	supported := deviceProfiles(caps)

	if len(downstream) == 0 {
		downstream = supported
	}

	// Intersect the offer with what the device can produce.
	filtered := make(ProfileSet)
	for p := range downstream {
		if supported.Has(p) {
			filtered.Add(p)
		}
	}
	if len(filtered) == 0 {
		return NegotiatedFormat{}, fmt.Errorf("no common profile between downstream offer and device: %w", ErrUnsupportedFormat)
	}

	if req.Width < caps.WidthMin || req.Width > caps.WidthMax ||
		req.Height < caps.HeightMin || req.Height > caps.HeightMax {
		return NegotiatedFormat{}, fmt.Errorf("resolution %dx%d outside device range [%dx%d, %dx%d]: %w",
			req.Width, req.Height, caps.WidthMin, caps.HeightMin, caps.WidthMax, caps.HeightMax, ErrUnsupportedFormat)
	}

	if !caps.SupportsFormat(req.Format) {
		return NegotiatedFormat{}, fmt.Errorf("device does not accept %s input: %w", req.Format, ErrUnsupportedFormat)
	}

	// Interlaced content needs both an interlace-capable profile and
	// device-side field encoding.
	if req.Interlaced {
		if caps.FieldEncoding == 0 {
			return NegotiatedFormat{}, fmt.Errorf("device does not support field encoding: %w", ErrUnsupportedFormat)
		}
		progressive := make([]Profile, 0)
		for p := range filtered {
			if !p.SupportsInterlaced() {
				progressive = append(progressive, p)
			}
		}
		for _, p := range progressive {
			delete(filtered, p)
		}
		if len(filtered) == 0 {
			return NegotiatedFormat{}, fmt.Errorf("no downstream profile supports interlaced encoding: %w", ErrUnsupportedFormat)
		}
	}

	var (
		selected       Profile
		bframesAllowed bool
	)

	if req.Format == device.FormatY444 {
		// 4:4:4 content requires the 4:4:4 profile.
		if !filtered.Has(ProfileHigh444) {
			return NegotiatedFormat{}, fmt.Errorf("downstream does not accept a 4:4:4 profile: %w", ErrUnsupportedFormat)
		}
		selected = ProfileHigh444
		bframesAllowed = true
	} else {
		for p := range filtered {
			if p.SupportsBFrames() {
				bframesAllowed = true
				break
			}
		}
	}

	if selected == "" && req.MultiFrameGOP {
		for _, p := range highEfficiencyPreference {
			if filtered.Has(p) {
				selected = p
				break
			}
		}
	}
	if selected == "" {
		for _, p := range profilePriority {
			if filtered.Has(p) {
				selected = p
				break
			}
		}
	}

	fpsNum, fpsDen := req.FPSNum, req.FPSDen
	if fpsNum <= 0 || fpsDen <= 0 {
		fpsNum, fpsDen = 0, 1
	}

	return NegotiatedFormat{
		Profile:                 selected,
		Format:                  req.Format,
		Width:                   req.Width,
		Height:                  req.Height,
		FPSNum:                  fpsNum,
		FPSDen:                  fpsDen,
		PARNum:                  req.PARNum,
		PARDen:                  req.PARDen,
		Interlaced:              req.Interlaced,
		BFramesAllowed:          bframesAllowed,
		Downstream:              filtered,
		FullRange:               req.FullRange,
		ColourMatrix:            req.ColourMatrix,
		ColourPrimaries:         req.ColourPrimaries,
		TransferCharacteristics: req.TransferCharacteristics,
	}, nil
}

// FormatSpace is the negotiable input space derived from capabilities and
// a downstream offer, before a concrete format is requested.
type FormatSpace struct {
	Formats        []device.PixelFormat `yaml:"formats"`
	Profiles       []Profile            `yaml:"profiles"`
	InterlaceModes []string             `yaml:"interlace_modes"`
	WidthMin       int                  `yaml:"width_min"`
	WidthMax       int                  `yaml:"width_max"`
	HeightMin      int                  `yaml:"height_min"`
	HeightMax      int                  `yaml:"height_max"`
}

// ProposeFormats derives the acceptable input space from the capability
// snapshot and a (possibly empty) downstream profile offer. With an empty
// offer the full capability-derived space is proposed and restriction is
// deferred (lazy negotiation).
func ProposeFormats(caps device.Capabilities, downstream ProfileSet) FormatSpace {
	supported := deviceProfiles(caps)

	profiles := supported
	if len(downstream) > 0 {
		profiles = make(ProfileSet)
		for p := range downstream {
			if supported.Has(p) {
				profiles.Add(p)
			}
		}
	}

	formats := make(map[device.PixelFormat]struct{})
	interlaced := false
	for p := range profiles {
		if p == ProfileHigh444 {
			formats[device.FormatY444] = struct{}{}
		} else {
			formats[device.FormatNV12] = struct{}{}
		}
		if p.SupportsInterlaced() {
			interlaced = true
		}
	}

	space := FormatSpace{
		Profiles:  profiles.Sorted(),
		WidthMin:  roundUp16(caps.WidthMin),
		WidthMax:  caps.WidthMax,
		HeightMin: roundUp16(caps.HeightMin),
		HeightMax: caps.HeightMax,
	}
	for _, f := range caps.InputFormats {
		if _, ok := formats[f]; ok {
			space.Formats = append(space.Formats, f)
		}
	}
	if interlaced && caps.FieldEncoding > 0 {
		space.InterlaceModes = []string{"progressive", "interleaved", "mixed"}
	} else {
		space.InterlaceModes = []string{"progressive"}
	}
	return space
}

func roundUp16(v int) int {
	return (v + 15) &^ 15
}
