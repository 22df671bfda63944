package encoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwenc/internal/device"
)

// annexB joins NAL units with four-byte start codes.
func annexB(nalus ...[]byte) []byte {
	var buf []byte
	for _, nalu := range nalus {
		buf = append(buf, 0, 0, 0, 1)
		buf = append(buf, nalu...)
	}
	return buf
}

var (
	testSPS = []byte{0x67, 77, 0x00, 0x1f, 0x95, 0xa8}
	testPPS = []byte{0x68, 0xce, 0x38, 0x80}
)

func TestParseSequenceHeader(t *testing.T) {
	raw := annexB(testSPS, testPPS)

	hdr, err := ParseSequenceHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, hdr.Raw)
	assert.Equal(t, testSPS, hdr.SPS)
	assert.Equal(t, testPPS, hdr.PPS)
	assert.Equal(t, ProfileMain, hdr.Profile)
}

func TestParseSequenceHeader_FirstParameterSetWins(t *testing.T) {
	otherSPS := []byte{0x67, 100, 0x00, 0x1f, 0x95}
	raw := annexB(testSPS, otherSPS, testPPS)

	hdr, err := ParseSequenceHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, testSPS, hdr.SPS)
}

func TestParseSequenceHeader_MissingPPS(t *testing.T) {
	_, err := ParseSequenceHeader(annexB(testSPS))
	assert.ErrorIs(t, err, ErrSequenceHeader)
}

func TestParseSequenceHeader_Garbage(t *testing.T) {
	_, err := ParseSequenceHeader([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)
}

func TestParseSequenceHeader_UnknownProfile(t *testing.T) {
	badSPS := []byte{0x67, 42, 0x00, 0x1f}
	_, err := ParseSequenceHeader(annexB(badSPS, testPPS))
	assert.ErrorIs(t, err, ErrSequenceHeader)
}

func TestBuildCodecData(t *testing.T) {
	data, err := BuildCodecData(testSPS, testPPS)
	require.NoError(t, err)

	want := []byte{
		1, 77, 0x00, 0x1f, // version, profile, compat, level
		0xff, 0xe1, // 4-byte lengths, one SPS
		0, byte(len(testSPS)),
	}
	want = append(want, testSPS...)
	want = append(want, 1, 0, byte(len(testPPS)))
	want = append(want, testPPS...)
	assert.Equal(t, want, data)
}

func TestBuildCodecData_ShortSPS(t *testing.T) {
	_, err := BuildCodecData([]byte{0x67, 77}, testPPS)
	assert.ErrorIs(t, err, ErrSequenceHeader)

	_, err = BuildCodecData(testSPS, nil)
	assert.ErrorIs(t, err, ErrSequenceHeader)
}

func TestPackager_ByteStreamPassthrough(t *testing.T) {
	p := NewPackager(StreamFormatByteStream)
	assert.Equal(t, StreamFormatByteStream, p.Format())

	out := device.Output{
		Data:     annexB(testSPS, testPPS, []byte{0x65, 0x88, 0x84}),
		Keyframe: true,
		PTS:      33 * time.Millisecond,
	}
	unit, err := p.Package(out)
	require.NoError(t, err)
	assert.Equal(t, out.Data, unit.Data)
	assert.True(t, unit.Keyframe)
	assert.Equal(t, out.PTS, unit.PTS)
}

func TestPackager_PacketizedRewritesFraming(t *testing.T) {
	p := NewPackager(StreamFormatPacketized)

	slice := []byte{0x65, 0x88, 0x84, 0x21}
	unit, err := p.Package(device.Output{Data: annexB(slice), Keyframe: true})
	require.NoError(t, err)

	want := append([]byte{0, 0, 0, byte(len(slice))}, slice...)
	assert.Equal(t, want, unit.Data)
	assert.True(t, unit.Keyframe)
}

func TestPackager_PacketizedMultipleNALUs(t *testing.T) {
	p := NewPackager(StreamFormatPacketized)

	aud := []byte{0x09, 0xf0}
	slice := []byte{0x41, 0x9a, 0x80}
	unit, err := p.Package(device.Output{Data: annexB(aud, slice)})
	require.NoError(t, err)

	want := append([]byte{0, 0, 0, byte(len(aud))}, aud...)
	want = append(want, 0, 0, 0, byte(len(slice)))
	want = append(want, slice...)
	assert.Equal(t, want, unit.Data)
}

func TestPackager_PacketizedRejectsGarbage(t *testing.T) {
	p := NewPackager(StreamFormatPacketized)
	_, err := p.Package(device.Output{Data: []byte{0xde, 0xad}})
	assert.Error(t, err)
}

func TestPackageAll_PreservesOrder(t *testing.T) {
	p := NewPackager(StreamFormatByteStream)

	outs := []device.Output{
		{Data: annexB([]byte{0x65, 0x01}), PTS: 0},
		{Data: annexB([]byte{0x41, 0x02}), PTS: 33 * time.Millisecond},
		{Data: annexB([]byte{0x41, 0x03}), PTS: 66 * time.Millisecond},
	}
	units, err := p.PackageAll(outs)
	require.NoError(t, err)
	require.Len(t, units, 3)
	for i, unit := range units {
		assert.Equal(t, outs[i].Data, unit.Data)
		assert.Equal(t, outs[i].PTS, unit.PTS)
	}
}

func TestPackageAll_Empty(t *testing.T) {
	units, err := NewPackager(StreamFormatPacketized).PackageAll(nil)
	require.NoError(t, err)
	assert.Nil(t, units)
}
