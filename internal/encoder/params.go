package encoder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cast"

	"github.com/jmylchreest/hwenc/internal/device"
)

// DirtyFlags classifies pending parameter changes by the weight of the
// reconfiguration they require.
type DirtyFlags uint8

// Dirty levels.
const (
	// DirtyInitParam requires a full session reconfiguration.
	DirtyInitParam DirtyFlags = 1 << iota
	// DirtyRateControl requires a rate-control reconfiguration, which the
	// session machine escalates to a full reconfiguration.
	DirtyRateControl
	// DirtyBitrate may be satisfied by a lightweight dynamic update when
	// the device supports it.
	DirtyBitrate
)

// QPUnset disables a quantizer bound.
const QPUnset = -1

// Default property values.
const (
	DefaultGOPSize = 75
	DefaultAUD     = true
)

// Values holds every externally configurable encoder property. Bitrate
// fields are in kbit/s.
type Values struct {
	Preset       device.Preset
	WeightedPred bool

	GOPSize int
	BFrames uint

	RCMode        device.RateControlMode
	QPConstI      int
	QPConstP      int
	QPConstB      int
	Bitrate       uint
	MaxBitrate    uint
	VBVBufferSize uint
	RCLookahead   uint
	IAdapt        bool
	BAdapt        bool
	SpatialAQ     bool
	TemporalAQ    bool
	ZeroLatency   bool
	NonRefP       bool
	StrictGOP     bool
	AQStrength    uint
	QPMinI        int
	QPMinP        int
	QPMinB        int
	QPMaxI        int
	QPMaxP        int
	QPMaxB        int
	ConstQuality  float64

	AUD                  bool
	CABAC                bool
	RepeatSequenceHeader bool
}

// defaultValues returns the initial property values for a device. CABAC
// starts enabled when the device supports it.
func defaultValues(caps device.Capabilities) Values {
	return Values{
		Preset:   device.PresetDefault,
		GOPSize:  DefaultGOPSize,
		RCMode:   device.RCModeVBR,
		QPConstI: QPUnset,
		QPConstP: QPUnset,
		QPConstB: QPUnset,
		QPMinI:   QPUnset,
		QPMinP:   QPUnset,
		QPMinB:   QPUnset,
		QPMaxI:   QPUnset,
		QPMaxP:   QPUnset,
		QPMaxB:   QPUnset,
		AUD:      DefaultAUD,
		CABAC:    caps.CABAC != 0,
	}
}

// property describes one configurable option: the dirty level its mutation
// raises, an optional availability gate on device capabilities, and typed
// accessors.
type property struct {
	level     DirtyFlags
	available func(caps *device.Capabilities) bool
	set       func(p *Parameters, value any) (changed bool, err error)
	get       func(v *Values) any
}

func setInt(dst *int, value any, lo, hi int) (bool, error) {
	v, err := cast.ToIntE(value)
	if err != nil {
		return false, err
	}
	if v < lo || v > hi {
		return false, fmt.Errorf("value %d out of range [%d, %d]", v, lo, hi)
	}
	if *dst == v {
		return false, nil
	}
	*dst = v
	return true, nil
}

func setUint(dst *uint, value any, hi uint) (bool, error) {
	v, err := cast.ToUintE(value)
	if err != nil {
		return false, err
	}
	if v > hi {
		return false, fmt.Errorf("value %d out of range [0, %d]", v, hi)
	}
	if *dst == v {
		return false, nil
	}
	*dst = v
	return true, nil
}

func setBool(dst *bool, value any) (bool, error) {
	v, err := cast.ToBoolE(value)
	if err != nil {
		return false, err
	}
	if *dst == v {
		return false, nil
	}
	*dst = v
	return true, nil
}

func setFloat(dst *float64, value any, lo, hi float64) (bool, error) {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return false, err
	}
	if v < lo || v > hi {
		return false, fmt.Errorf("value %g out of range [%g, %g]", v, lo, hi)
	}
	if *dst == v {
		return false, nil
	}
	*dst = v
	return true, nil
}

func intProp(level DirtyFlags, field func(*Values) *int, lo, hi int) property {
	return property{
		level: level,
		set: func(p *Parameters, value any) (bool, error) {
			return setInt(field(&p.v), value, lo, hi)
		},
		get: func(v *Values) any { return *field(v) },
	}
}

func boolProp(level DirtyFlags, field func(*Values) *bool) property {
	return property{
		level: level,
		set: func(p *Parameters, value any) (bool, error) {
			return setBool(field(&p.v), value)
		},
		get: func(v *Values) any { return *field(v) },
	}
}

func qpProp(level DirtyFlags, field func(*Values) *int) property {
	return intProp(level, field, QPUnset, 51)
}

// properties maps every recognized option name to its dirty level and
// accessors. The dirty classification is the single source of truth for
// the update-and-classify routine.
var properties = map[string]property{
	"preset": {
		level: DirtyInitParam,
		set: func(p *Parameters, value any) (bool, error) {
			s, err := cast.ToStringE(value)
			if err != nil {
				return false, err
			}
			preset := device.ParsePreset(s)
			if p.v.Preset == preset {
				return false, nil
			}
			p.v.Preset = preset
			return true, nil
		},
		get: func(v *Values) any { return v.Preset.String() },
	},
	"weighted-pred": func() property {
		prop := boolProp(DirtyInitParam, func(v *Values) *bool { return &v.WeightedPred })
		prop.available = func(caps *device.Capabilities) bool { return caps.WeightedPrediction != 0 }
		return prop
	}(),
	"gop-size": intProp(DirtyInitParam, func(v *Values) *int { return &v.GOPSize }, -1, 1<<31-1),
	"bframes": {
		level:     DirtyInitParam,
		available: func(caps *device.Capabilities) bool { return caps.MaxBFrames > 0 },
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.BFrames, value, uint(p.caps.MaxBFrames))
		},
		get: func(v *Values) any { return v.BFrames },
	},
	"rc-mode": {
		level: DirtyRateControl,
		set: func(p *Parameters, value any) (bool, error) {
			s, err := cast.ToStringE(value)
			if err != nil {
				return false, err
			}
			mode := device.ParseRCMode(s)
			if p.v.RCMode == mode {
				return false, nil
			}
			p.v.RCMode = mode
			return true, nil
		},
		get: func(v *Values) any { return v.RCMode.String() },
	},
	"qp-const-i": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPConstI }),
	"qp-const-p": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPConstP }),
	"qp-const-b": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPConstB }),
	"bitrate": {
		level: DirtyBitrate,
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.Bitrate, value, 2048*1024)
		},
		get: func(v *Values) any { return v.Bitrate },
	},
	"max-bitrate": {
		level: DirtyBitrate,
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.MaxBitrate, value, 2048*1024)
		},
		get: func(v *Values) any { return v.MaxBitrate },
	},
	"vbv-buffer-size": {
		level:     DirtyRateControl,
		available: func(caps *device.Capabilities) bool { return caps.CustomVBVBufSize != 0 },
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.VBVBufferSize, value, 1<<32-1)
		},
		get: func(v *Values) any { return v.VBVBufferSize },
	},
	// rc-lookahead resizes the frame pool, hence a full init.
	"rc-lookahead": {
		level:     DirtyInitParam,
		available: func(caps *device.Capabilities) bool { return caps.Lookahead != 0 },
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.RCLookahead, value, 32)
		},
		get: func(v *Values) any { return v.RCLookahead },
	},
	"i-adapt": func() property {
		prop := boolProp(DirtyRateControl, func(v *Values) *bool { return &v.IAdapt })
		prop.available = func(caps *device.Capabilities) bool { return caps.Lookahead != 0 }
		return prop
	}(),
	"b-adapt": func() property {
		prop := boolProp(DirtyRateControl, func(v *Values) *bool { return &v.BAdapt })
		prop.available = func(caps *device.Capabilities) bool {
			return caps.Lookahead != 0 && caps.MaxBFrames > 0
		}
		return prop
	}(),
	"spatial-aq": boolProp(DirtyRateControl, func(v *Values) *bool { return &v.SpatialAQ }),
	"temporal-aq": func() property {
		prop := boolProp(DirtyRateControl, func(v *Values) *bool { return &v.TemporalAQ })
		prop.available = func(caps *device.Capabilities) bool { return caps.TemporalAQ != 0 }
		return prop
	}(),
	"zerolatency": boolProp(DirtyRateControl, func(v *Values) *bool { return &v.ZeroLatency }),
	"nonref-p":    boolProp(DirtyRateControl, func(v *Values) *bool { return &v.NonRefP }),
	"strict-gop":  boolProp(DirtyRateControl, func(v *Values) *bool { return &v.StrictGOP }),
	"aq-strength": {
		level: DirtyRateControl,
		set: func(p *Parameters, value any) (bool, error) {
			return setUint(&p.v.AQStrength, value, 15)
		},
		get: func(v *Values) any { return v.AQStrength },
	},
	"qp-min-i": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMinI }),
	"qp-min-p": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMinP }),
	"qp-min-b": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMinB }),
	"qp-max-i": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMaxI }),
	"qp-max-p": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMaxP }),
	"qp-max-b": qpProp(DirtyRateControl, func(v *Values) *int { return &v.QPMaxB }),
	"const-quality": {
		level: DirtyRateControl,
		set: func(p *Parameters, value any) (bool, error) {
			return setFloat(&p.v.ConstQuality, value, 0, 51)
		},
		get: func(v *Values) any { return v.ConstQuality },
	},
	"aud": boolProp(DirtyInitParam, func(v *Values) *bool { return &v.AUD }),
	"cabac": func() property {
		prop := boolProp(DirtyInitParam, func(v *Values) *bool { return &v.CABAC })
		prop.available = func(caps *device.Capabilities) bool { return caps.CABAC != 0 }
		return prop
	}(),
	"repeat-sequence-header": boolProp(DirtyInitParam, func(v *Values) *bool { return &v.RepeatSequenceHeader }),
}

// Parameters is the externally configurable property bag of one encoder
// instance. Any goroutine may mutate it at any time; all access is
// serialized under a single mutex, and the encode worker reads a
// consistent snapshot only at frame boundaries.
type Parameters struct {
	mu         sync.Mutex
	caps       device.Capabilities
	v          Values
	dirty      DirtyFlags
	onOverride func(name string)
}

// NewParameters creates a property bag with device-appropriate defaults.
func NewParameters(caps device.Capabilities) *Parameters {
	return &Parameters{
		caps: caps,
		v:    defaultValues(caps),
	}
}

// SetOverrideNotify registers a callback invoked (outside the parameter
// lock) whenever a requested value is forcibly overridden during session
// configuration. The caller should re-read the property to observe the
// applied value.
func (p *Parameters) SetOverrideNotify(fn func(name string)) {
	p.mu.Lock()
	p.onOverride = fn
	p.mu.Unlock()
}

// Set updates one property by name. A change that does not alter the
// stored value raises no dirty flag. Unknown names, and names gated on a
// capability this device lacks, fail with ErrUnknownProperty.
func (p *Parameters) Set(name string, value any) error {
	prop, ok := properties[name]
	if !ok {
		return &PropertyError{Name: name, Err: ErrUnknownProperty}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prop.available != nil && !prop.available(&p.caps) {
		return &PropertyError{Name: name, Err: ErrUnknownProperty}
	}
	changed, err := prop.set(p, value)
	if err != nil {
		return &PropertyError{Name: name, Err: err}
	}
	if changed {
		p.dirty |= prop.level
	}
	return nil
}

// Get returns the current value of one property by name.
func (p *Parameters) Get(name string) (any, error) {
	prop, ok := properties[name]
	if !ok {
		return nil, &PropertyError{Name: name, Err: ErrUnknownProperty}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prop.available != nil && !prop.available(&p.caps) {
		return nil, &PropertyError{Name: name, Err: ErrUnknownProperty}
	}
	return prop.get(&p.v), nil
}

// Names returns all property names recognized on this device, sorted.
func (p *Parameters) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(properties))
	for name, prop := range properties {
		if prop.available != nil && !prop.available(&p.caps) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a consistent snapshot of all property values.
func (p *Parameters) Values() Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v
}

// Dirty returns the pending dirty flags without clearing them.
func (p *Parameters) Dirty() DirtyFlags {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// takeDirty atomically snapshots the values and pending dirty flags and
// clears the flags. A mutation racing in after the snapshot re-raises
// dirtiness and is applied at the following frame boundary.
func (p *Parameters) takeDirty() (Values, DirtyFlags) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, d := p.v, p.dirty
	p.dirty = 0
	return v, d
}

// buildConfig builds the session descriptor from the current values,
// applies any forced overrides back into the stored values, and clears
// dirty state, all under the parameter lock. Override notifications fire
// after the lock is released.
func (p *Parameters) buildConfig(format NegotiatedFormat) (device.SessionConfig, []string) {
	p.mu.Lock()
	cfg, overrides := BuildSessionConfig(p.v, p.caps, format)
	for _, name := range overrides {
		if name == "bframes" {
			p.v.BFrames = 0
		}
	}
	p.dirty = 0
	notify := p.onOverride
	p.mu.Unlock()

	if notify != nil {
		for _, name := range overrides {
			notify(name)
		}
	}
	return cfg, overrides
}
