// Package adts detects and iterates AAC elementary streams framed with ADTS
// headers.
package adts

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

const formatName = "adts"

// Header sizes without and with the CRC word.
const (
	HeaderSize    = 7
	HeaderSizeCRC = 9
)

// SamplesPerRawBlock is the number of PCM samples one raw data block decodes
// to.
const SamplesPerRawBlock = 1024

var sampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

var (
	errNoSync = errors.New("no sync word")
	errShort  = errors.New("header needs 7 bytes")
)

// FrameHeader is one decoded ADTS header.
type FrameHeader struct {
	// Offset is the stream position of the header when found by FindHeader.
	Offset           int64
	FrameLength      int
	HeaderLength     int
	Sync             uint16
	BufferFullness   uint16
	Layer            uint8
	Profile          uint8 // audio object type minus one
	SampleRateIndex  uint8
	ChannelConfig    uint8
	RawBlocks        uint8 // number of raw data blocks minus one
	MPEG4            bool
	ProtectionAbsent bool
}

// ParseHeader decodes and checks the header at the start of b.
func ParseHeader(b []byte) (FrameHeader, error) {
	if len(b) < HeaderSize {
		return FrameHeader{}, errShort
	}
	if b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return FrameHeader{}, errNoSync
	}

	h := FrameHeader{
		Sync:             uint16(b[0])<<4 | uint16(b[1]>>4),
		MPEG4:            b[1]&0x08 == 0,
		Layer:            (b[1] >> 1) & 0x03,
		ProtectionAbsent: b[1]&0x01 == 1,
		Profile:          b[2] >> 6,
		SampleRateIndex:  (b[2] >> 2) & 0x0F,
		ChannelConfig:    (b[2]&0x01)<<2 | b[3]>>6,
		FrameLength:      int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]>>5),
		BufferFullness:   uint16(b[5]&0x1F)<<6 | uint16(b[6]>>2),
		RawBlocks:        b[6] & 0x03,
		HeaderLength:     HeaderSize,
	}
	if !h.ProtectionAbsent {
		h.HeaderLength = HeaderSizeCRC
	}

	switch {
	case h.Layer != 0:
		return h, fmt.Errorf("layer %d", h.Layer)
	case int(h.SampleRateIndex) >= len(sampleRates):
		return h, fmt.Errorf("sample rate index %d", h.SampleRateIndex)
	case h.ChannelConfig == 0:
		return h, errors.New("channel configuration 0")
	case h.FrameLength < h.HeaderLength:
		return h, fmt.Errorf("frame length %d shorter than %d-byte header", h.FrameLength, h.HeaderLength)
	}
	return h, nil
}

// SampleRate returns the sampling frequency in Hz.
func (h FrameHeader) SampleRate() int {
	if int(h.SampleRateIndex) >= len(sampleRates) {
		return 0
	}
	return sampleRates[h.SampleRateIndex]
}

// Channels returns the channel count of the channel configuration.
func (h FrameHeader) Channels() int {
	if h.ChannelConfig == 7 {
		return 8
	}
	return int(h.ChannelConfig)
}

// SamplesPerFrame returns the PCM samples the frame decodes to.
func (h FrameHeader) SamplesPerFrame() int {
	return SamplesPerRawBlock * (int(h.RawBlocks) + 1)
}

// PayloadLength returns the frame length without the header.
func (h FrameHeader) PayloadLength() int {
	return h.FrameLength - h.HeaderLength
}

// ObjectType returns the MPEG-4 audio object type.
func (h FrameHeader) ObjectType() mpeg4audio.ObjectType {
	return mpeg4audio.ObjectType(h.Profile + 1)
}

// AudioConfig returns the AudioSpecificConfig equivalent of the header.
func (h FrameHeader) AudioConfig() *mpeg4audio.AudioSpecificConfig {
	return &mpeg4audio.AudioSpecificConfig{
		Type:         h.ObjectType(),
		SampleRate:   h.SampleRate(),
		ChannelCount: h.Channels(),
	}
}

func (h FrameHeader) String() string {
	return fmt.Sprintf("adts frame at %d: %d bytes, object type %d, %d Hz, %d channels",
		h.Offset, h.FrameLength, h.ObjectType(), h.SampleRate(), h.Channels())
}
