// Package device defines the hardware encoder device abstraction: capability
// identifiers, the probed capability snapshot, and the session interfaces
// through which the encoder core drives a device.
package device

// Capability identifies a single queryable device capability.
type Capability int

// Capability identifiers, mirroring the encoder device's query surface.
const (
	CapMaxBFrames Capability = iota
	CapRateControlModes
	CapFieldEncoding
	CapMonochrome
	CapFMO
	CapQpelMV
	CapBDirectMode
	CapCABAC
	CapAdaptiveTransform
	CapStereoMVC
	CapMaxTemporalLayers
	CapHierarchicalPFrames
	CapHierarchicalBFrames
	CapLevelMax
	CapLevelMin
	CapSeparateColourPlane
	CapWidthMax
	CapHeightMax
	CapTemporalSVC
	CapDynResChange
	CapDynBitrateChange
	CapDynForceConstQP
	CapDynRCModeChange
	CapSubframeReadback
	CapConstrainedEncoding
	CapIntraRefresh
	CapCustomVBVBufSize
	CapDynamicSliceMode
	CapRefPicInvalidation
	CapPreprocSupport
	CapAsyncEncoding
	CapMaxMBNum
	CapMaxMBPerSec
	CapYUV444Encode
	CapLosslessEncode
	CapMEOnlyMode
	CapLookahead
	CapTemporalAQ
	Cap10BitEncode
	CapMaxLTRFrames
	CapWeightedPrediction
	CapBFrameRefMode
	CapEmphasisLevelMap
	CapWidthMin
	CapHeightMin
	CapMultipleRefFrames
)

var capabilityNames = map[Capability]string{
	CapMaxBFrames:          "max-bframes",
	CapRateControlModes:    "ratecontrol-modes",
	CapFieldEncoding:       "field-encoding",
	CapMonochrome:          "monochrome",
	CapFMO:                 "fmo",
	CapQpelMV:              "qpelmv",
	CapBDirectMode:         "bdirect-mode",
	CapCABAC:               "cabac",
	CapAdaptiveTransform:   "adaptive-transform",
	CapStereoMVC:           "stereo-mvc",
	CapMaxTemporalLayers:   "max-temporal-layers",
	CapHierarchicalPFrames: "hierarchical-pframes",
	CapHierarchicalBFrames: "hierarchical-bframes",
	CapLevelMax:            "level-max",
	CapLevelMin:            "level-min",
	CapSeparateColourPlane: "separate-colour-plane",
	CapWidthMax:            "width-max",
	CapHeightMax:           "height-max",
	CapTemporalSVC:         "temporal-svc",
	CapDynResChange:        "dyn-res-change",
	CapDynBitrateChange:    "dyn-bitrate-change",
	CapDynForceConstQP:     "dyn-force-constqp",
	CapDynRCModeChange:     "dyn-rcmode-change",
	CapSubframeReadback:    "subframe-readback",
	CapConstrainedEncoding: "constrained-encoding",
	CapIntraRefresh:        "intra-refresh",
	CapCustomVBVBufSize:    "custom-vbv-buf-size",
	CapDynamicSliceMode:    "dynamic-slice-mode",
	CapRefPicInvalidation:  "ref-pic-invalidation",
	CapPreprocSupport:      "preproc-support",
	CapAsyncEncoding:       "async-encoding",
	CapMaxMBNum:            "max-mb-num",
	CapMaxMBPerSec:         "max-mb-per-sec",
	CapYUV444Encode:        "yuv444-encode",
	CapLosslessEncode:      "lossless-encode",
	CapMEOnlyMode:          "meonly-mode",
	CapLookahead:           "lookahead",
	CapTemporalAQ:          "temporal-aq",
	Cap10BitEncode:         "10bit-encode",
	CapMaxLTRFrames:        "max-ltr-frames",
	CapWeightedPrediction:  "weighted-prediction",
	CapBFrameRefMode:       "bframe-ref-mode",
	CapEmphasisLevelMap:    "emphasis-level-map",
	CapWidthMin:            "width-min",
	CapHeightMin:           "height-min",
	CapMultipleRefFrames:   "multiple-ref-frames",
}

// String returns the stable textual name of the capability.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// PixelFormat is an input pixel format accepted by a device.
type PixelFormat string

// Input pixel formats.
const (
	FormatNV12 PixelFormat = "NV12"
	FormatY444 PixelFormat = "Y444"
)

// ProfileID identifies a bitstream profile as reported by the device.
type ProfileID int

// Device-reported profile identifiers.
const (
	ProfileIDBaseline ProfileID = iota
	ProfileIDMain
	ProfileIDHigh
	ProfileIDHigh444
	ProfileIDProgressiveHigh
	ProfileIDConstrainedHigh
)

// Capabilities is an immutable snapshot of a device's feature set, fetched
// once when the device is discovered. Scalar fields hold the raw query
// results; boolean features are nonzero when supported.
type Capabilities struct {
	MaxBFrames          int `json:"max_bframes" yaml:"max_bframes"`
	RateControlModes    int `json:"ratecontrol_modes" yaml:"ratecontrol_modes"`
	FieldEncoding       int `json:"field_encoding" yaml:"field_encoding"`
	Monochrome          int `json:"monochrome" yaml:"monochrome"`
	FMO                 int `json:"fmo" yaml:"fmo"`
	QpelMV              int `json:"qpelmv" yaml:"qpelmv"`
	BDirectMode         int `json:"bdirect_mode" yaml:"bdirect_mode"`
	CABAC               int `json:"cabac" yaml:"cabac"`
	AdaptiveTransform   int `json:"adaptive_transform" yaml:"adaptive_transform"`
	StereoMVC           int `json:"stereo_mvc" yaml:"stereo_mvc"`
	MaxTemporalLayers   int `json:"max_temporal_layers" yaml:"max_temporal_layers"`
	HierarchicalPFrames int `json:"hierarchical_pframes" yaml:"hierarchical_pframes"`
	HierarchicalBFrames int `json:"hierarchical_bframes" yaml:"hierarchical_bframes"`
	LevelMax            int `json:"level_max" yaml:"level_max"`
	LevelMin            int `json:"level_min" yaml:"level_min"`
	SeparateColourPlane int `json:"separate_colour_plane" yaml:"separate_colour_plane"`
	WidthMax            int `json:"width_max" yaml:"width_max"`
	HeightMax           int `json:"height_max" yaml:"height_max"`
	TemporalSVC         int `json:"temporal_svc" yaml:"temporal_svc"`
	DynResChange        int `json:"dyn_res_change" yaml:"dyn_res_change"`
	DynBitrateChange    int `json:"dyn_bitrate_change" yaml:"dyn_bitrate_change"`
	DynForceConstQP     int `json:"dyn_force_constqp" yaml:"dyn_force_constqp"`
	DynRCModeChange     int `json:"dyn_rcmode_change" yaml:"dyn_rcmode_change"`
	SubframeReadback    int `json:"subframe_readback" yaml:"subframe_readback"`
	ConstrainedEncoding int `json:"constrained_encoding" yaml:"constrained_encoding"`
	IntraRefresh        int `json:"intra_refresh" yaml:"intra_refresh"`
	CustomVBVBufSize    int `json:"custom_vbv_buf_size" yaml:"custom_vbv_buf_size"`
	DynamicSliceMode    int `json:"dynamic_slice_mode" yaml:"dynamic_slice_mode"`
	RefPicInvalidation  int `json:"ref_pic_invalidation" yaml:"ref_pic_invalidation"`
	PreprocSupport      int `json:"preproc_support" yaml:"preproc_support"`
	AsyncEncoding       int `json:"async_encoding" yaml:"async_encoding"`
	MaxMBNum            int `json:"max_mb_num" yaml:"max_mb_num"`
	MaxMBPerSec         int `json:"max_mb_per_sec" yaml:"max_mb_per_sec"`
	YUV444Encode        int `json:"yuv444_encode" yaml:"yuv444_encode"`
	LosslessEncode      int `json:"lossless_encode" yaml:"lossless_encode"`
	MEOnlyMode          int `json:"meonly_mode" yaml:"meonly_mode"`
	Lookahead           int `json:"lookahead" yaml:"lookahead"`
	TemporalAQ          int `json:"temporal_aq" yaml:"temporal_aq"`
	Supports10Bit       int `json:"supports_10bit" yaml:"supports_10bit"`
	MaxLTRFrames        int `json:"max_ltr_frames" yaml:"max_ltr_frames"`
	WeightedPrediction  int `json:"weighted_prediction" yaml:"weighted_prediction"`
	BFrameRefMode       int `json:"bframe_ref_mode" yaml:"bframe_ref_mode"`
	EmphasisLevelMap    int `json:"emphasis_level_map" yaml:"emphasis_level_map"`
	WidthMin            int `json:"width_min" yaml:"width_min"`
	HeightMin           int `json:"height_min" yaml:"height_min"`
	MultipleRefFrames   int `json:"multiple_ref_frames" yaml:"multiple_ref_frames"`

	// Derived from the fundamental queries.
	Profiles     []ProfileID   `json:"profiles" yaml:"profiles"`
	InputFormats []PixelFormat `json:"input_formats" yaml:"input_formats"`
}

// SupportsFormat reports whether the device accepts the given input format.
func (c *Capabilities) SupportsFormat(f PixelFormat) bool {
	for _, have := range c.InputFormats {
		if have == f {
			return true
		}
	}
	return false
}

// SupportsProfile reports whether the device can encode the given profile.
func (c *Capabilities) SupportsProfile(id ProfileID) bool {
	for _, have := range c.Profiles {
		if have == id {
			return true
		}
	}
	return false
}
