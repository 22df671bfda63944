package device

import (
	"context"
	"fmt"
	"log/slog"
)

// capQuery binds one capability to its destination field and the default
// substituted when the individual query fails.
type capQuery struct {
	cap Capability
	dst func(*Capabilities) *int
	def int
}

// Per-query defaults. Feature queries default to unsupported; resolution
// bounds default to the conventional 16..4096 range.
var capQueries = []capQuery{
	{CapMaxBFrames, func(c *Capabilities) *int { return &c.MaxBFrames }, 0},
	{CapRateControlModes, func(c *Capabilities) *int { return &c.RateControlModes }, int(RCModeVBR)},
	{CapFieldEncoding, func(c *Capabilities) *int { return &c.FieldEncoding }, 0},
	{CapMonochrome, func(c *Capabilities) *int { return &c.Monochrome }, 0},
	{CapFMO, func(c *Capabilities) *int { return &c.FMO }, 0},
	{CapQpelMV, func(c *Capabilities) *int { return &c.QpelMV }, 0},
	{CapBDirectMode, func(c *Capabilities) *int { return &c.BDirectMode }, 0},
	{CapCABAC, func(c *Capabilities) *int { return &c.CABAC }, 0},
	{CapAdaptiveTransform, func(c *Capabilities) *int { return &c.AdaptiveTransform }, 0},
	{CapStereoMVC, func(c *Capabilities) *int { return &c.StereoMVC }, 0},
	{CapMaxTemporalLayers, func(c *Capabilities) *int { return &c.MaxTemporalLayers }, 0},
	{CapHierarchicalPFrames, func(c *Capabilities) *int { return &c.HierarchicalPFrames }, 0},
	{CapHierarchicalBFrames, func(c *Capabilities) *int { return &c.HierarchicalBFrames }, 0},
	{CapLevelMax, func(c *Capabilities) *int { return &c.LevelMax }, 0},
	{CapLevelMin, func(c *Capabilities) *int { return &c.LevelMin }, 0},
	{CapSeparateColourPlane, func(c *Capabilities) *int { return &c.SeparateColourPlane }, 0},
	{CapWidthMax, func(c *Capabilities) *int { return &c.WidthMax }, 4096},
	{CapHeightMax, func(c *Capabilities) *int { return &c.HeightMax }, 4096},
	{CapTemporalSVC, func(c *Capabilities) *int { return &c.TemporalSVC }, 0},
	{CapDynResChange, func(c *Capabilities) *int { return &c.DynResChange }, 0},
	{CapDynBitrateChange, func(c *Capabilities) *int { return &c.DynBitrateChange }, 0},
	{CapDynForceConstQP, func(c *Capabilities) *int { return &c.DynForceConstQP }, 0},
	{CapDynRCModeChange, func(c *Capabilities) *int { return &c.DynRCModeChange }, 0},
	{CapSubframeReadback, func(c *Capabilities) *int { return &c.SubframeReadback }, 0},
	{CapConstrainedEncoding, func(c *Capabilities) *int { return &c.ConstrainedEncoding }, 0},
	{CapIntraRefresh, func(c *Capabilities) *int { return &c.IntraRefresh }, 0},
	{CapCustomVBVBufSize, func(c *Capabilities) *int { return &c.CustomVBVBufSize }, 0},
	{CapDynamicSliceMode, func(c *Capabilities) *int { return &c.DynamicSliceMode }, 0},
	{CapRefPicInvalidation, func(c *Capabilities) *int { return &c.RefPicInvalidation }, 0},
	{CapPreprocSupport, func(c *Capabilities) *int { return &c.PreprocSupport }, 0},
	{CapAsyncEncoding, func(c *Capabilities) *int { return &c.AsyncEncoding }, 0},
	{CapMaxMBNum, func(c *Capabilities) *int { return &c.MaxMBNum }, 0},
	{CapMaxMBPerSec, func(c *Capabilities) *int { return &c.MaxMBPerSec }, 0},
	{CapYUV444Encode, func(c *Capabilities) *int { return &c.YUV444Encode }, 0},
	{CapLosslessEncode, func(c *Capabilities) *int { return &c.LosslessEncode }, 0},
	{CapMEOnlyMode, func(c *Capabilities) *int { return &c.MEOnlyMode }, 0},
	{CapLookahead, func(c *Capabilities) *int { return &c.Lookahead }, 0},
	{CapTemporalAQ, func(c *Capabilities) *int { return &c.TemporalAQ }, 0},
	{Cap10BitEncode, func(c *Capabilities) *int { return &c.Supports10Bit }, 0},
	{CapMaxLTRFrames, func(c *Capabilities) *int { return &c.MaxLTRFrames }, 0},
	{CapWeightedPrediction, func(c *Capabilities) *int { return &c.WeightedPrediction }, 0},
	{CapBFrameRefMode, func(c *Capabilities) *int { return &c.BFrameRefMode }, 0},
	{CapEmphasisLevelMap, func(c *Capabilities) *int { return &c.EmphasisLevelMap }, 0},
	{CapWidthMin, func(c *Capabilities) *int { return &c.WidthMin }, 16},
	{CapHeightMin, func(c *Capabilities) *int { return &c.HeightMin }, 16},
	{CapMultipleRefFrames, func(c *Capabilities) *int { return &c.MultipleRefFrames }, 0},
}

// Probe queries every capability of the device and returns the snapshot.
// Individual scalar queries that fail substitute their documented default
// and log a warning; the probe fails only when the fundamental queries
// (supported profiles, supported input formats) come back empty.
func Probe(ctx context.Context, q CapsQuerier, logger *slog.Logger) (Capabilities, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var caps Capabilities

	profiles, err := q.ProfileIDs(ctx)
	if err != nil || len(profiles) == 0 {
		logger.Warn("unable to get supported profiles", slog.Any("error", err))
		return Capabilities{}, fmt.Errorf("querying supported profiles: %w", ErrIncompatible)
	}

	formats, err := q.InputFormats(ctx)
	if err != nil || len(formats) == 0 {
		logger.Warn("unable to get supported input formats", slog.Any("error", err))
		return Capabilities{}, fmt.Errorf("querying input formats: %w", ErrIncompatible)
	}

	for _, query := range capQueries {
		val, err := q.QueryCap(ctx, query.cap)
		if err != nil {
			logger.Warn("capability query failed, using default",
				slog.String("capability", query.cap.String()),
				slog.Int("default", query.def),
				slog.Any("error", err))
			val = query.def
		}
		*query.dst(&caps) = val
	}

	caps.Profiles = profiles

	// Y444 input is only usable when the device can actually encode 4:4:4.
	for _, f := range formats {
		if f == FormatY444 && caps.YUV444Encode == 0 {
			continue
		}
		caps.InputFormats = append(caps.InputFormats, f)
	}
	if len(caps.InputFormats) == 0 {
		return Capabilities{}, fmt.Errorf("no usable input format: %w", ErrIncompatible)
	}

	return caps, nil
}
