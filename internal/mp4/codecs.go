package mp4

import "errors"

// Descriptor tags of ISO/IEC 14496-1 used inside esds.
const (
	tagESDescriptor        = 0x03
	tagDecoderConfig       = 0x04
	tagDecoderSpecificInfo = 0x05
)

// codecNames maps sample entry types to display names.
var codecNames = map[string]string{
	"mp4a": "AAC",
	"mhm1": "xHE-AAC",
	"mhm2": "xHE-AAC v2",
	"ac-3": "AC-3",
	"ec-3": "E-AC-3",
	"ac-4": "AC-4",
	"alac": "Apple Lossless",
	"fLaC": "FLAC",
	"Opus": "Opus",
	"mp3 ": "MP3",
	".mp3": "MP3",
}

// aacProfiles maps MPEG-4 audio object types to profile names.
var aacProfiles = map[int]string{
	1:  "AAC Main",
	2:  "AAC-LC",
	3:  "AAC-SSR",
	4:  "AAC-LTP",
	5:  "HE-AAC",
	6:  "AAC Scalable",
	29: "HE-AAC v2",
	42: "xHE-AAC",
}

// CodecName returns a display name for a sample entry type.
func CodecName(fourCC string) string {
	if name, ok := codecNames[fourCC]; ok {
		return name
	}
	return fourCC
}

// AACProfile returns the profile name of an audio object type, or "".
func AACProfile(objectType int) string {
	return aacProfiles[objectType]
}

var errDescriptor = errors.New("truncated descriptor")

// parseESDescriptors walks the esds full box payload and returns the decoder
// object type and the raw DecoderSpecificInfo bytes.
func parseESDescriptors(data []byte) (oti uint8, dsi []byte, err error) {
	if len(data) < 4 {
		return 0, nil, errDescriptor
	}
	pos := 4 // version and flags

	readDescriptor := func(want byte) ([]byte, error) {
		if pos >= len(data) {
			return nil, errDescriptor
		}
		tag := data[pos]
		pos++
		size := 0
		for i := 0; ; i++ {
			if i == 4 || pos >= len(data) {
				return nil, errDescriptor
			}
			b := data[pos]
			pos++
			size = size<<7 | int(b&0x7F)
			if b&0x80 == 0 {
				break
			}
		}
		if tag != want {
			return nil, errors.New("unexpected descriptor tag")
		}
		if size > len(data)-pos {
			return nil, errDescriptor
		}
		body := data[pos : pos+size]
		pos += size
		return body, nil
	}

	es, err := readDescriptor(tagESDescriptor)
	if err != nil {
		return 0, nil, err
	}
	// ES_ID, then flags selecting optional fields.
	if len(es) < 3 {
		return 0, nil, errDescriptor
	}
	flags := es[2]
	skip := 3
	if flags&0x80 != 0 {
		skip += 2
	}
	if flags&0x40 != 0 {
		if skip >= len(es) {
			return 0, nil, errDescriptor
		}
		skip += 1 + int(es[skip])
	}
	if flags&0x20 != 0 {
		skip += 2
	}
	if skip > len(es) {
		return 0, nil, errDescriptor
	}
	data, pos = es, skip

	dc, err := readDescriptor(tagDecoderConfig)
	if err != nil {
		return 0, nil, err
	}
	if len(dc) < 13 {
		return 0, nil, errDescriptor
	}
	oti = dc[0]

	data, pos = dc, 13
	if pos == len(data) {
		return oti, nil, nil
	}
	dsi, err = readDescriptor(tagDecoderSpecificInfo)
	if err != nil {
		return oti, nil, err
	}
	return oti, dsi, nil
}
