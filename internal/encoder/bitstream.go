package encoder

import (
	"fmt"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/jmylchreest/hwenc/internal/device"
)

// CompressedUnit is one packaged access unit ready for the downstream
// consumer, in submission order.
type CompressedUnit struct {
	Data     []byte
	Keyframe bool
	PTS      time.Duration
}

// SequenceHeader is the parsed parameter-set block of a configured
// session: the raw start-code-delimited bytes, the individual parameter
// sets, and the profile the device actually achieved.
type SequenceHeader struct {
	Raw     []byte
	SPS     []byte
	PPS     []byte
	Profile Profile
}

// ParseSequenceHeader splits a start-code-delimited sequence header into
// its parameter sets and derives the achieved profile from the SPS.
func ParseSequenceHeader(raw []byte) (*SequenceHeader, error) {
	var au h264.AnnexB
	if err := au.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("parsing sequence header: %w", err)
	}

	hdr := &SequenceHeader{Raw: raw}
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if hdr.SPS == nil {
				hdr.SPS = nalu
			}
		case h264.NALUTypePPS:
			if hdr.PPS == nil {
				hdr.PPS = nalu
			}
		}
	}
	if hdr.SPS == nil || hdr.PPS == nil {
		return nil, fmt.Errorf("sequence header missing parameter sets: %w", ErrSequenceHeader)
	}

	profile, err := ProfileFromSPS(hdr.SPS)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrSequenceHeader)
	}
	hdr.Profile = profile
	return hdr, nil
}

// BuildCodecData assembles the out-of-band decoder configuration record
// for packetized output from one SPS and one PPS.
func BuildCodecData(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, fmt.Errorf("sequence parameter set too short (%d bytes): %w", len(sps), ErrSequenceHeader)
	}
	if len(pps) == 0 {
		return nil, fmt.Errorf("empty picture parameter set: %w", ErrSequenceHeader)
	}

	buf := make([]byte, 0, 11+len(sps)+len(pps))
	buf = append(buf,
		1,      // configurationVersion
		sps[1], // AVCProfileIndication
		sps[2], // profile_compatibility
		sps[3], // AVCLevelIndication
		0xfc|3, // lengthSizeMinusOne: 4-byte lengths
		0xe0|1, // numOfSequenceParameterSets
	)
	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)
	buf = append(buf, 1) // numOfPictureParameterSets
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)
	return buf, nil
}

// Packager converts raw device output buffers into the negotiated stream
// framing. Byte-stream output passes through unmodified; packetized
// output is rewritten to length-prefixed units.
type Packager struct {
	format StreamFormat
}

// NewPackager creates a packager for the given stream framing.
func NewPackager(format StreamFormat) *Packager {
	return &Packager{format: format}
}

// Format returns the configured framing.
func (p *Packager) Format() StreamFormat {
	return p.format
}

// Package converts one raw output buffer into a compressed unit.
func (p *Packager) Package(out device.Output) (CompressedUnit, error) {
	unit := CompressedUnit{
		Data:     out.Data,
		Keyframe: out.Keyframe,
		PTS:      out.PTS,
	}
	if p.format == StreamFormatByteStream {
		return unit, nil
	}

	var au h264.AnnexB
	if err := au.Unmarshal(out.Data); err != nil {
		return CompressedUnit{}, fmt.Errorf("repackaging access unit: %w", err)
	}
	data, err := h264.AVCC(au).Marshal()
	if err != nil {
		return CompressedUnit{}, fmt.Errorf("repackaging access unit: %w", err)
	}
	unit.Data = data
	return unit, nil
}

// PackageAll converts a batch of raw output buffers, preserving order.
func (p *Packager) PackageAll(outs []device.Output) ([]CompressedUnit, error) {
	if len(outs) == 0 {
		return nil, nil
	}
	units := make([]CompressedUnit, 0, len(outs))
	for _, out := range outs {
		unit, err := p.Package(out)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}
