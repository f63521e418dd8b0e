package adts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameParams describes one generated ADTS frame.
type frameParams struct {
	profile   byte // object type minus one
	rateIndex byte
	channels  byte
	rawBlocks byte // minus one
	payload   int
	crc       bool
	layer     byte
	fill      byte
}

func aacFrame(payload int) frameParams {
	return frameParams{profile: 1, rateIndex: 4, channels: 2, payload: payload, fill: 0x11}
}

func (f frameParams) header() []byte {
	hl := HeaderSize
	if f.crc {
		hl = HeaderSizeCRC
	}
	length := hl + f.payload
	fullness := 0x7FF

	b := make([]byte, hl)
	b[0] = 0xFF
	b[1] = 0xF0 | f.layer<<1
	if !f.crc {
		b[1] |= 0x01
	}
	b[2] = f.profile<<6 | f.rateIndex<<2 | (f.channels>>2)&0x01
	b[3] = (f.channels&0x03)<<6 | byte(length>>11)&0x03
	b[4] = byte(length >> 3)
	b[5] = byte(length&0x07)<<5 | byte(fullness>>6)&0x1F
	b[6] = byte(fullness&0x3F)<<2 | f.rawBlocks&0x03
	return b
}

func (f frameParams) bytes() []byte {
	b := f.header()
	for range f.payload {
		b = append(b, f.fill)
	}
	return b
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(aacFrame(100).bytes())
	require.NoError(t, err)

	assert.Equal(t, uint16(0xFFF), h.Sync)
	assert.True(t, h.MPEG4)
	assert.True(t, h.ProtectionAbsent)
	assert.Equal(t, HeaderSize, h.HeaderLength)
	assert.Equal(t, 107, h.FrameLength)
	assert.Equal(t, 100, h.PayloadLength())
	assert.Equal(t, uint16(0x7FF), h.BufferFullness)
	assert.Equal(t, 44100, h.SampleRate())
	assert.Equal(t, 2, h.Channels())
	assert.Equal(t, 2, int(h.ObjectType()))
	assert.Equal(t, 1024, h.SamplesPerFrame())
	assert.Contains(t, h.String(), "44100 Hz")
}

func TestParseHeader_CRCAndBlocks(t *testing.T) {
	f := aacFrame(50)
	f.crc = true
	f.rawBlocks = 3
	f.channels = 7
	f.rateIndex = 3

	h, err := ParseHeader(f.bytes())
	require.NoError(t, err)
	assert.False(t, h.ProtectionAbsent)
	assert.Equal(t, HeaderSizeCRC, h.HeaderLength)
	assert.Equal(t, 59, h.FrameLength)
	assert.Equal(t, 4096, h.SamplesPerFrame())
	assert.Equal(t, 8, h.Channels())
	assert.Equal(t, 48000, h.SampleRate())
}

func TestParseHeader_AudioConfig(t *testing.T) {
	f := aacFrame(10)
	f.profile = 0
	f.rateIndex = 8
	f.channels = 1

	h, err := ParseHeader(f.bytes())
	require.NoError(t, err)

	conf := h.AudioConfig()
	assert.Equal(t, 1, int(conf.Type))
	assert.Equal(t, 16000, conf.SampleRate)
	assert.Equal(t, 1, conf.ChannelCount)
}

func TestParseHeader_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		frame func() []byte
	}{
		{"short", func() []byte { return aacFrame(0).bytes()[:6] }},
		{"no sync", func() []byte {
			b := aacFrame(10).bytes()
			b[1] = 0xE1
			return b
		}},
		{"layer", func() []byte {
			f := aacFrame(10)
			f.layer = 1
			return f.bytes()
		}},
		{"reserved sample rate", func() []byte {
			f := aacFrame(10)
			f.rateIndex = 13
			return f.bytes()
		}},
		{"channel config 0", func() []byte {
			f := aacFrame(10)
			f.channels = 0
			return f.bytes()
		}},
		{"length shorter than header", func() []byte {
			f := aacFrame(10)
			f.crc = true
			b := f.bytes()
			// Declare 8 bytes while the CRC header alone needs 9.
			b[3] &^= 0x03
			b[4] = 0x01
			b[5] = b[5]&0x1F | 0x00
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.frame())
			assert.Error(t, err)
		})
	}
}
