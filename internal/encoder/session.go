package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/hwenc/internal/device"
)

// State is the lifecycle state of an encoder.
type State int

// Encoder states.
const (
	StateUninitialized State = iota
	StateConfigured
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// OutputFormat is the downstream-facing stream descriptor, derived from
// the achieved sequence header rather than the requested configuration.
type OutputFormat struct {
	Profile      Profile
	StreamFormat StreamFormat
	Width        int
	Height       int
	FPSNum       int
	FPSDen       int

	// CodecData is the out-of-band decoder configuration record. Only set
	// for packetized output.
	CodecData []byte

	SequenceHeader *SequenceHeader
}

// Encoder drives a hardware encode session through its lifecycle: format
// negotiation, session configuration, per-frame encoding with tiered
// reconfiguration at frame boundaries, and teardown.
//
// Encode-path methods must be called from a single goroutine. Property
// mutation through Params is safe from any goroutine at any time; changes
// take effect at the next frame boundary.
type Encoder struct {
	id     string
	opener device.SessionOpener
	caps   device.Capabilities
	params *Parameters
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	session  device.Session
	format   NegotiatedFormat
	framing  StreamFormat
	packager *Packager
	out      *OutputFormat
}

// New creates an encoder for a probed device.
func New(opener device.SessionOpener, caps device.Capabilities, params *Parameters, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	id := ulid.Make().String()
	return &Encoder{
		id:     id,
		opener: opener,
		caps:   caps,
		params: params,
		log:    logger.With("encoder_id", id),
	}
}

// ID returns the encoder instance identifier used in logs.
func (e *Encoder) ID() string { return e.id }

// Params returns the property bag. Safe to use concurrently with the
// encode path.
func (e *Encoder) Params() *Parameters { return e.params }

// State returns the current lifecycle state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Format returns the current output descriptor, or nil before the first
// successful SetFormat. A full reconfiguration refreshes the descriptor,
// so callers should re-read it after EncodeFrame when tracking codec data.
func (e *Encoder) Format() *OutputFormat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

// multiFrameGOP reports whether the current parameters produce a GOP with
// more than one frame between anchors. All-intra and infinite GOP modes
// force a frame interval of one, so only a positive GOP size with B-frames
// qualifies.
func multiFrameGOP(v Values) bool {
	return v.BFrames > 0 && v.GOPSize > 0
}

// SetFormat negotiates the encoding contract and (re)configures the
// session for it. Any live session is torn down first; outputs still
// pending in the device are discarded, so callers should drain with a
// final EncodeFrame cadence before switching formats.
func (e *Encoder) SetFormat(ctx context.Context, downstream ProfileSet, framing StreamFormat, req FormatRequest) (*OutputFormat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed {
		return nil, sessionErr(e.state, "set-format", ErrClosed)
	}

	v := e.params.Values()
	req.MultiFrameGOP = req.MultiFrameGOP || multiFrameGOP(v)

	nf, err := Negotiate(e.caps, downstream, req)
	if err != nil {
		return nil, err
	}

	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.log.Warn("closing session for format change", "error", err)
		}
		e.session = nil
		e.state = StateUninitialized
	}

	e.format = nf
	e.framing = framing
	e.packager = NewPackager(framing)

	if err := e.reconfigureLocked(ctx); err != nil {
		return nil, err
	}

	e.log.Info("format configured",
		"profile", e.out.Profile,
		"stream_format", framing,
		"width", nf.Width,
		"height", nf.Height,
		"pixel_format", nf.Format,
		"bframes_allowed", nf.BFramesAllowed)
	return e.out, nil
}

// EncodeFrame submits one frame and returns completed compressed units in
// submission order. Pending parameter changes are applied first: a
// bitrate-only change uses an in-place update when the device supports
// it, anything heavier tears the session down and rebuilds it with the
// same negotiated format.
func (e *Encoder) EncodeFrame(ctx context.Context, f *device.Frame) ([]CompressedUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return nil, sessionErr(e.state, "encode", ErrClosed)
	case StateUninitialized:
		return nil, sessionErr(e.state, "encode", ErrNotConfigured)
	}

	units, err := e.applyPendingLocked(ctx)
	if err != nil {
		return nil, err
	}

	outs, err := e.session.Encode(ctx, f)
	if err != nil {
		return nil, sessionErr(e.state, "encode", fmt.Errorf("%v: %w", err, ErrEncodeFailed))
	}
	encoded, err := e.packager.PackageAll(outs)
	if err != nil {
		return nil, sessionErr(e.state, "encode", err)
	}
	return append(units, encoded...), nil
}

// Close drains and releases the session. The returned units are the final
// outputs still pending in the device. Close is idempotent.
func (e *Encoder) Close(ctx context.Context) ([]CompressedUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed {
		return nil, nil
	}
	e.state = StateClosed

	if e.session == nil {
		return nil, nil
	}

	var units []CompressedUnit
	outs, err := e.session.Drain(ctx)
	if err != nil {
		e.log.Warn("draining session on close", "error", err)
	} else if e.packager != nil {
		units, err = e.packager.PackageAll(outs)
		if err != nil {
			e.log.Warn("packaging drained output on close", "error", err)
			units = nil
		}
	}

	if err := e.session.Close(); err != nil {
		e.log.Warn("closing session", "error", err)
	}
	e.session = nil
	e.log.Info("encoder closed", "drained_units", len(units))
	return units, nil
}

// applyPendingLocked applies pending property changes at a frame
// boundary. Dirty flags are snapshotted and cleared before acting so a
// concurrent mutation during reconfiguration is picked up at the next
// boundary instead of being lost.
func (e *Encoder) applyPendingLocked(ctx context.Context) ([]CompressedUnit, error) {
	v, dirty := e.params.takeDirty()
	if dirty == 0 {
		return nil, nil
	}

	if dirty&(DirtyInitParam|DirtyRateControl) == 0 && e.caps.DynBitrateChange != 0 {
		// Bitrate-only change on a device with dynamic update support.
		cfg, _ := BuildSessionConfig(v, e.caps, e.format)
		if err := e.session.UpdateRateControl(cfg.RateControl); err != nil {
			return nil, sessionErr(e.state, "update-rate-control", err)
		}
		e.log.Debug("bitrate updated in place",
			"bitrate_kbit", v.Bitrate,
			"max_bitrate_kbit", v.MaxBitrate)
		return nil, nil
	}

	e.log.Debug("reconfiguring session", "dirty", dirtyString(dirty))

	// Flush completed output of the old session before tearing it down.
	outs, err := e.session.Drain(ctx)
	if err != nil {
		return nil, sessionErr(e.state, "drain", fmt.Errorf("%v: %w", err, ErrEncodeFailed))
	}
	units, err := e.packager.PackageAll(outs)
	if err != nil {
		return nil, sessionErr(e.state, "drain", err)
	}
	if err := e.session.Close(); err != nil {
		e.log.Warn("closing session for reconfiguration", "error", err)
	}
	e.session = nil
	e.state = StateUninitialized

	if err := e.reconfigureLocked(ctx); err != nil {
		return nil, err
	}
	return units, nil
}

// reconfigureLocked opens and configures a session for the already
// negotiated format, then refreshes the output descriptor from the
// achieved sequence header.
func (e *Encoder) reconfigureLocked(ctx context.Context) error {
	cfg, overrides := e.params.buildConfig(e.format)
	applyStreamFormat(&cfg, e.framing)
	for _, name := range overrides {
		e.log.Info("property overridden by profile constraints", "property", name)
	}

	sess, err := e.opener.OpenSession(ctx)
	if err != nil {
		return sessionErr(e.state, "open", err)
	}
	if err := sess.Configure(&cfg); err != nil {
		_ = sess.Close()
		return sessionErr(e.state, "configure", fmt.Errorf("%v: %w", err, ErrSessionConfig))
	}

	out, err := e.outputFormat(sess, &cfg)
	if err != nil {
		_ = sess.Close()
		return err
	}

	if e.out != nil && e.out.Profile != out.Profile {
		e.log.Info("achieved profile changed", "from", e.out.Profile, "to", out.Profile)
	}
	e.session = sess
	e.out = out
	e.state = StateConfigured
	return nil
}

// outputFormat derives the downstream descriptor from the session's
// achieved sequence header. The profile comes from the parsed SPS, not
// the requested configuration, because the device may substitute one.
func (e *Encoder) outputFormat(sess device.Session, cfg *device.SessionConfig) (*OutputFormat, error) {
	raw, err := sess.SequenceParams()
	if err != nil {
		return nil, sessionErr(e.state, "sequence-params", fmt.Errorf("%v: %w", err, ErrSequenceHeader))
	}
	hdr, err := ParseSequenceHeader(raw)
	if err != nil {
		return nil, sessionErr(e.state, "sequence-params", err)
	}

	out := &OutputFormat{
		Profile:        resolveProfileName(hdr.Profile, e.format.Downstream),
		StreamFormat:   e.framing,
		Width:          cfg.Width,
		Height:         cfg.Height,
		FPSNum:         cfg.FrameRateNum,
		FPSDen:         cfg.FrameRateDen,
		SequenceHeader: hdr,
	}
	if e.framing == StreamFormatPacketized {
		cd, err := BuildCodecData(hdr.SPS, hdr.PPS)
		if err != nil {
			return nil, sessionErr(e.state, "sequence-params", err)
		}
		out.CodecData = cd
	}
	return out, nil
}

func dirtyString(d DirtyFlags) string {
	s := ""
	if d&DirtyInitParam != 0 {
		s += "init"
	}
	if d&DirtyRateControl != 0 {
		if s != "" {
			s += "+"
		}
		s += "rc"
	}
	if d&DirtyBitrate != 0 {
		if s != "" {
			s += "+"
		}
		s += "bitrate"
	}
	if s == "" {
		return "none"
	}
	return s
}
