package encoder

import (
	"github.com/jmylchreest/hwenc/internal/device"
)

// qpCascade fills missing per-frame-type quantizer values from the
// previous frame type: P inherits I, B inherits P. The returned flag is
// false when no value in the group is set.
func qpCascade(i, p, b int) (device.QPSet, bool) {
	if i < 0 {
		return device.QPSet{}, false
	}
	if p < 0 {
		p = i
	}
	if b < 0 {
		b = p
	}
	return device.QPSet{I: uint32(i), P: uint32(p), B: uint32(b)}, true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// displayAspect reduces width*parN : height*parD to lowest terms.
func displayAspect(width, height, parN, parD int) (int, int) {
	if parN <= 0 || parD <= 0 {
		parN, parD = 1, 1
	}
	darW := width * parN
	darH := height * parD
	if darW <= 0 || darH <= 0 {
		return 0, 0
	}
	g := gcd(darW, darH)
	return darW / g, darH / g
}

// BuildSessionConfig derives the complete hardware initialization
// descriptor from the property snapshot, the device capabilities, and the
// negotiated format. It is pure: the same inputs always produce the same
// descriptor, so rebuilding after a reconfiguration is idempotent.
//
// The returned override list names properties whose requested value could
// not be honored and was forced; the caller folds those back into the
// property store and notifies the application.
func BuildSessionConfig(v Values, caps device.Capabilities, format NegotiatedFormat) (device.SessionConfig, []string) {
	var overrides []string

	darW, darH := displayAspect(format.Width, format.Height, format.PARNum, format.PARDen)

	cfg := device.SessionConfig{
		Width:        format.Width,
		Height:       format.Height,
		MaxWidth:     format.Width,
		MaxHeight:    format.Height,
		FrameRateNum: format.FPSNum,
		FrameRateDen: format.FPSDen,
		DARWidth:     darW,
		DARHeight:    darH,

		Preset:             v.Preset,
		WeightedPrediction: v.WeightedPred && caps.WeightedPrediction != 0,
		FieldEncoding:      format.Interlaced,

		Profile:   string(format.Profile),
		OutputAUD: v.AUD,
	}

	// GOP structure. Negative length means a single leading keyframe and
	// an open-ended stream; zero means every frame is intra.
	switch {
	case v.GOPSize < 0:
		cfg.GOPLength = device.InfiniteGOPLength
		cfg.FrameIntervalP = 1
	case v.GOPSize == 0:
		cfg.GOPLength = 1
		cfg.FrameIntervalP = 0
	default:
		// B-frames only arise in a multi-frame GOP, so the override (and
		// its notification) is confined to this branch.
		bframes := v.BFrames
		if bframes > 0 && !format.BFramesAllowed {
			bframes = 0
			overrides = append(overrides, "bframes")
		}
		cfg.GOPLength = uint32(v.GOPSize)
		cfg.FrameIntervalP = int(bframes) + 1
	}
	cfg.IDRPeriod = cfg.GOPLength

	// Chroma sampling follows the input format, not the profile: a 4:2:0
	// input stays 4:2:0 even under the 4:4:4 profile.
	if format.Format == device.FormatY444 {
		cfg.ChromaFormatIDC = 3
	} else {
		cfg.ChromaFormatIDC = 1
	}

	// Entropy coding is explicit whenever the device can honor the choice:
	// CABAC needs device support and a non-baseline profile, and disabling
	// it there selects CAVLC rather than leaving the device free to pick
	// CABAC again. Otherwise the device auto-selects.
	switch {
	case caps.CABAC == 0 || format.Profile.BaselineClass():
		cfg.EntropyCoding = device.EntropyAuto
	case v.CABAC:
		cfg.EntropyCoding = device.EntropyCABAC
	default:
		cfg.EntropyCoding = device.EntropyCAVLC
	}

	// Parameter set placement: in-band repetition when requested,
	// otherwise out-of-band for packetized output and inline at stream
	// start for byte-stream output.
	if v.RepeatSequenceHeader {
		cfg.RepeatSPSPPS = true
	}

	rc := device.RateControlParams{
		Mode:             v.RCMode,
		AverageBitrate:   uint64(v.Bitrate) * 1024,
		MaxBitrate:       uint64(v.MaxBitrate) * 1024,
		VBVBufferSize:    uint64(v.VBVBufferSize) * 1024,
		EnableAQ:         v.SpatialAQ,
		AQStrength:       uint32(v.AQStrength),
		TemporalAQ:       v.TemporalAQ && caps.TemporalAQ != 0,
		StrictGOP:        v.StrictGOP,
		NonRefP:          v.NonRefP,
		ZeroReorderDelay: v.ZeroLatency,
	}

	if qp, ok := qpCascade(v.QPConstI, v.QPConstP, v.QPConstB); ok {
		rc.ConstQP = qp
		if rc.Mode == device.RCModeDefault {
			rc.Mode = device.RCModeConstQP
		}
	}
	if qp, ok := qpCascade(v.QPMinI, v.QPMinP, v.QPMinB); ok {
		rc.EnableMinQP = true
		rc.MinQP = qp
	}
	if qp, ok := qpCascade(v.QPMaxI, v.QPMaxP, v.QPMaxB); ok {
		rc.EnableMaxQP = true
		rc.MaxQP = qp
	}

	if v.ConstQuality > 0 {
		// Fixed-point 8.8 split across two descriptor fields.
		q := uint32(v.ConstQuality * 256)
		rc.TargetQuality = uint8(q >> 8)
		rc.TargetQualityLSB = uint8(q & 0xff)
	}

	if v.RCLookahead > 0 && caps.Lookahead != 0 {
		rc.EnableLookahead = true
		rc.LookaheadDepth = uint32(v.RCLookahead)
		rc.DisableIAdapt = !v.IAdapt
		rc.DisableBAdapt = !v.BAdapt
	}

	cfg.RateControl = rc

	cfg.VUI = device.VUIParams{
		FullRange:               format.FullRange,
		ColourMatrix:            format.ColourMatrix,
		ColourPrimaries:         format.ColourPrimaries,
		TransferCharacteristics: format.TransferCharacteristics,
	}

	return cfg, overrides
}

// applyStreamFormat finalizes parameter set placement for the selected
// output framing. Packetized output carries parameter sets out-of-band,
// so in-band emission is disabled unless repetition was explicitly
// requested.
func applyStreamFormat(cfg *device.SessionConfig, sf StreamFormat) {
	if cfg.RepeatSPSPPS {
		cfg.DisableSPSPPS = false
		return
	}
	cfg.DisableSPSPPS = sf == StreamFormatPacketized
}
