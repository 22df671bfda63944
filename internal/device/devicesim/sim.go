// Package devicesim provides a deterministic software stand-in for a
// hardware encoder device. It honors the device interfaces end to end:
// scripted capability tables, session open/close accounting, and synthetic
// start-code-delimited access units whose cadence follows the configured
// GOP structure. It backs the encode CLI command and the encoder tests.
package devicesim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jmylchreest/hwenc/internal/device"
)

// DefaultCaps returns the capability table of the simulated device,
// modeled on a desktop-class GPU encoder.
func DefaultCaps() map[device.Capability]int {
	return map[device.Capability]int{
		device.CapMaxBFrames:         4,
		device.CapRateControlModes:   int(device.RCModeVBR),
		device.CapFieldEncoding:      1,
		device.CapCABAC:              1,
		device.CapWidthMax:           4096,
		device.CapHeightMax:          4096,
		device.CapWidthMin:           16,
		device.CapHeightMin:          16,
		device.CapDynBitrateChange:   1,
		device.CapDynResChange:       1,
		device.CapCustomVBVBufSize:   1,
		device.CapLookahead:          1,
		device.CapTemporalAQ:         1,
		device.CapWeightedPrediction: 1,
		device.CapYUV444Encode:       1,
		device.CapIntraRefresh:       1,
	}
}

// Device is a simulated encoder device. It implements device.CapsQuerier
// and device.SessionOpener.
type Device struct {
	mu sync.Mutex

	caps     map[device.Capability]int
	profiles []device.ProfileID
	formats  []device.PixelFormat

	failCaps     map[device.Capability]bool
	openErr      error
	configureErr error
	encodeErr    error
	seqErr       error

	opened int
	last   *Session
}

// Option configures a simulated device.
type Option func(*Device)

// WithCap overrides one capability value.
func WithCap(c device.Capability, v int) Option {
	return func(d *Device) { d.caps[c] = v }
}

// WithProfiles overrides the supported profile list.
func WithProfiles(ids ...device.ProfileID) Option {
	return func(d *Device) { d.profiles = ids }
}

// WithFormats overrides the supported input format list.
func WithFormats(formats ...device.PixelFormat) Option {
	return func(d *Device) { d.formats = formats }
}

// WithCapFailure makes one capability query return an error.
func WithCapFailure(c device.Capability) Option {
	return func(d *Device) { d.failCaps[c] = true }
}

// WithOpenError makes session opening fail.
func WithOpenError(err error) Option {
	return func(d *Device) { d.openErr = err }
}

// WithConfigureError makes session configuration fail.
func WithConfigureError(err error) Option {
	return func(d *Device) { d.configureErr = err }
}

// WithSequenceError makes sequence header retrieval fail.
func WithSequenceError(err error) Option {
	return func(d *Device) { d.seqErr = err }
}

// New creates a simulated device with the default capability table.
func New(opts ...Option) *Device {
	d := &Device{
		caps: DefaultCaps(),
		profiles: []device.ProfileID{
			device.ProfileIDBaseline,
			device.ProfileIDMain,
			device.ProfileIDHigh,
			device.ProfileIDHigh444,
			device.ProfileIDProgressiveHigh,
			device.ProfileIDConstrainedHigh,
		},
		formats:  []device.PixelFormat{device.FormatNV12, device.FormatY444},
		failCaps: make(map[device.Capability]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// QueryCap implements device.CapsQuerier.
func (d *Device) QueryCap(_ context.Context, c device.Capability) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCaps[c] {
		return 0, fmt.Errorf("capability %s not queryable", c)
	}
	return d.caps[c], nil
}

// ProfileIDs implements device.CapsQuerier.
func (d *Device) ProfileIDs(context.Context) ([]device.ProfileID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.ProfileID(nil), d.profiles...), nil
}

// InputFormats implements device.CapsQuerier.
func (d *Device) InputFormats(context.Context) ([]device.PixelFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.PixelFormat(nil), d.formats...), nil
}

// OpenSession implements device.SessionOpener.
func (d *Device) OpenSession(context.Context) (device.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	s := &Session{dev: d}
	d.last = s
	return s, nil
}

// FailEncode arms an error for subsequent Encode calls.
func (d *Device) FailEncode(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encodeErr = err
}

// OpenCount returns how many sessions were opened on this device.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// LastSession returns the most recently opened session.
func (d *Device) LastSession() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Session is a simulated encode session.
type Session struct {
	dev *Device

	cfg        *device.SessionConfig
	configured bool
	closed     bool

	frames     uint32 // total frames submitted
	sinceKey   uint32 // frames since last keyframe
	startedGOP bool
	delay      int // completion delay, from lookahead depth
	pending    []device.Output
	rcUpdates  int
}

// Configure implements device.Session.
func (s *Session) Configure(cfg *device.SessionConfig) error {
	if s.closed {
		return device.ErrSessionClosed
	}
	if s.dev.configureErr != nil {
		return s.dev.configureErr
	}
	if s.configured {
		return fmt.Errorf("session already configured")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width > s.dev.caps[device.CapWidthMax] || cfg.Height > s.dev.caps[device.CapHeightMax] {
		return fmt.Errorf("resolution %dx%d exceeds device bounds", cfg.Width, cfg.Height)
	}
	if _, _, err := profileBits(cfg.Profile); err != nil {
		return err
	}
	copied := *cfg
	s.cfg = &copied
	s.configured = true
	if cfg.RateControl.EnableLookahead {
		s.delay = int(cfg.RateControl.LookaheadDepth)
	}
	return nil
}

// UpdateRateControl implements device.Session.
func (s *Session) UpdateRateControl(rc device.RateControlParams) error {
	if s.closed {
		return device.ErrSessionClosed
	}
	if !s.configured {
		return fmt.Errorf("session not configured")
	}
	if s.dev.caps[device.CapDynBitrateChange] == 0 {
		return device.ErrUnsupportedUpdate
	}
	s.cfg.RateControl.AverageBitrate = rc.AverageBitrate
	s.cfg.RateControl.MaxBitrate = rc.MaxBitrate
	s.rcUpdates++
	return nil
}

// RCUpdates returns how many lightweight rate-control updates were applied.
func (s *Session) RCUpdates() int { return s.rcUpdates }

// Closed reports whether the session handle was released.
func (s *Session) Closed() bool { return s.closed }

// Config returns the applied configuration descriptor.
func (s *Session) Config() *device.SessionConfig { return s.cfg }

// Encode implements device.Session. Output completion order matches
// submission order; a nonzero lookahead depth delays completions, which
// are recovered by Drain.
func (s *Session) Encode(_ context.Context, f *device.Frame) ([]device.Output, error) {
	if s.closed {
		return nil, device.ErrSessionClosed
	}
	if !s.configured {
		return nil, fmt.Errorf("session not configured")
	}
	if s.dev.encodeErr != nil {
		return nil, s.dev.encodeErr
	}

	keyframe := s.keyframeDue(f)
	if keyframe {
		s.sinceKey = 0
	}
	s.frames++
	s.sinceKey++

	s.pending = append(s.pending, device.Output{
		Data:     s.accessUnit(keyframe),
		Keyframe: keyframe,
		PTS:      f.PTS,
	})

	var done []device.Output
	for len(s.pending) > s.delay {
		done = append(done, s.pending[0])
		s.pending = s.pending[1:]
	}
	return done, nil
}

// Drain implements device.Session.
func (s *Session) Drain(context.Context) ([]device.Output, error) {
	if s.closed {
		return nil, device.ErrSessionClosed
	}
	out := s.pending
	s.pending = nil
	return out, nil
}

// SequenceParams implements device.Session.
func (s *Session) SequenceParams() ([]byte, error) {
	if s.closed {
		return nil, device.ErrSessionClosed
	}
	if !s.configured {
		return nil, fmt.Errorf("session not configured")
	}
	if s.dev.seqErr != nil {
		return nil, s.dev.seqErr
	}
	sps, pps := s.sequenceNALUs()
	buf := append([]byte{0, 0, 0, 1}, sps...)
	buf = append(buf, 0, 0, 0, 1)
	buf = append(buf, pps...)
	return buf, nil
}

// Close implements device.Session.
func (s *Session) Close() error {
	if s.closed {
		return device.ErrSessionClosed
	}
	s.closed = true
	s.pending = nil
	return nil
}

func (s *Session) keyframeDue(f *device.Frame) bool {
	switch {
	case f.ForceKeyframe:
		return true
	case !s.startedGOP:
		s.startedGOP = true
		return true
	case s.cfg.FrameIntervalP == 0:
		// All-intra cadence.
		return true
	case s.cfg.GOPLength == device.InfiniteGOPLength:
		return false
	default:
		return s.sinceKey >= s.cfg.GOPLength
	}
}

// accessUnit builds one start-code-delimited access unit. Payload bytes
// have the high bit set so no start code emulation can occur.
func (s *Session) accessUnit(keyframe bool) []byte {
	var au []byte
	appendNALU := func(nalu []byte) {
		au = append(au, 0, 0, 0, 1)
		au = append(au, nalu...)
	}

	if s.cfg.OutputAUD {
		appendNALU([]byte{0x09, 0xf0})
	}
	if keyframe && !s.cfg.DisableSPSPPS {
		sps, pps := s.sequenceNALUs()
		appendNALU(sps)
		appendNALU(pps)
	}

	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], s.frames)
	slice := []byte{0x41, 0x9a}
	if keyframe {
		slice = []byte{0x65, 0x88}
	}
	for _, b := range counter {
		slice = append(slice, b|0x80)
	}
	appendNALU(slice)
	return au
}

// sequenceNALUs synthesizes SPS and PPS units for the configured profile.
// The three bytes after the SPS header carry the real profile_idc,
// constraint flags, and level_idc, so downstream parsing sees the achieved
// profile.
func (s *Session) sequenceNALUs() (sps, pps []byte) {
	idc, flags, _ := profileBits(s.cfg.Profile)
	sps = []byte{
		0x67, idc, flags, 0x28, // level 4.0
		0xac | byte(s.cfg.ChromaFormatIDC),
		0x80 | byte(s.cfg.Width>>8&0x7f), 0x80 | byte(s.cfg.Width&0x7f),
		0x80 | byte(s.cfg.Height>>8&0x7f), 0x80 | byte(s.cfg.Height&0x7f),
	}
	pps = []byte{0x68, 0xce, 0x3c, 0x80}
	return sps, pps
}

// profileBits maps a canonical profile name to the profile_idc and
// constraint flag byte the hardware reports for it. The baseline class
// always sets constraint_set1, matching real encoder output.
func profileBits(profile string) (idc, flags byte, err error) {
	switch profile {
	case "baseline", "constrained-baseline":
		return 66, 0x40, nil
	case "main":
		return 77, 0x00, nil
	case "high":
		return 100, 0x00, nil
	case "progressive-high":
		return 100, 0x08, nil
	case "constrained-high":
		return 100, 0x0c, nil
	case "high-4:4:4":
		return 244, 0x00, nil
	case "":
		// Auto-select resolves to main.
		return 77, 0x00, nil
	default:
		return 0, 0, fmt.Errorf("unknown profile %q", profile)
	}
}
