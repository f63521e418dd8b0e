package mp4

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// TagKey is a well-known iTunes metadata item.
type TagKey int

const (
	TagTitle TagKey = iota
	TagArtist
	TagAlbum
	TagAlbumArtist
	TagGenre
	TagYear
	TagComment
	TagComposer
	numTagKeys
)

// tagAtoms maps ilst item types to keys. © is the byte 0xA9 in item types.
var tagAtoms = map[string]TagKey{
	"\xA9nam": TagTitle,
	"\xA9ART": TagArtist,
	"\xA9alb": TagAlbum,
	"aART":    TagAlbumArtist,
	"\xA9gen": TagGenre,
	"\xA9day": TagYear,
	"\xA9cmt": TagComment,
	"\xA9wrt": TagComposer,
}

var tagNames = [numTagKeys]string{
	TagTitle:       "title",
	TagArtist:      "artist",
	TagAlbum:       "album",
	TagAlbumArtist: "album_artist",
	TagGenre:       "genre",
	TagYear:        "year",
	TagComment:     "comment",
	TagComposer:    "composer",
}

func (k TagKey) String() string {
	if k < 0 || k >= numTagKeys {
		return "unknown"
	}
	return tagNames[k]
}

// Well-known data type indicators of ilst data boxes.
const (
	dataTypeImplicit = 0
	dataTypeUTF8     = 1
	dataTypeUTF16    = 2
	dataTypeJPEG     = 13
	dataTypePNG      = 14
	dataTypeBEInt    = 21
	dataTypeBEUint   = 22
)

// RawTag is an ilst item not covered by a TagKey. Freeform items are keyed
// "----:mean:name".
type RawTag struct {
	Key   string
	Value string
}

// Tags is the decoded ilst of a file.
type Tags struct {
	Raw    []RawTag
	values [numTagKeys]string
	set    [numTagKeys]bool
}

// Get returns a well-known value; ok is false when the file lacks the item.
func (t *Tags) Get(key TagKey) (string, bool) {
	if key < 0 || key >= numTagKeys {
		return "", false
	}
	return t.values[key], t.set[key]
}

// Title returns the ©nam item.
func (t *Tags) Title() string {
	v, _ := t.Get(TagTitle)
	return v
}

// Artist returns the ©ART item, falling back to aART.
func (t *Tags) Artist() string {
	if v, ok := t.Get(TagArtist); ok && v != "" {
		return v
	}
	v, _ := t.Get(TagAlbumArtist)
	return v
}

func (t *Tags) put(key TagKey, v string) {
	if t.set[key] {
		return
	}
	t.values[key] = v
	t.set[key] = true
}

// ExtractTags decodes moov/udta/meta/ilst, or moov/meta/ilst. A file without
// either returns empty tags. Undecodable items become warnings.
func ExtractTags(tree *Tree) (*Tags, []types.Warning) {
	tags := &Tags{}
	ilst, ok := tree.Find(-1, "moov", "udta", "meta", "ilst")
	if !ok {
		ilst, ok = tree.Find(-1, "moov", "meta", "ilst")
	}
	if !ok {
		return tags, nil
	}

	var warnings []types.Warning
	for item := range tree.Children(ilst) {
		b := tree.Box(item)
		key, value, err := decodeItem(tree, item)
		if err != nil {
			warnings = append(warnings, types.Warning{
				Stage:   "metadata",
				Message: fmt.Sprintf("tag %q: %v", printable(b.Type), err),
				Offset:  b.Start,
			})
			continue
		}
		if key == "" {
			continue
		}
		if k, ok := tagAtoms[b.Type]; ok {
			tags.put(k, value)
			continue
		}
		tags.Raw = append(tags.Raw, RawTag{Key: key, Value: value})
	}
	return tags, warnings
}

// decodeItem returns the key and text of one ilst item. An empty key means
// the item had no textual value (cover art, empty data).
func decodeItem(tree *Tree, item int) (key, value string, err error) {
	b := tree.Box(item)
	key = printable(b.Type)

	if b.Type == "----" {
		var mean, name string
		if i, ok := tree.Child(item, "mean"); ok {
			mean = fullBoxString(tree.Box(i).Payload)
		}
		if i, ok := tree.Child(item, "name"); ok {
			name = fullBoxString(tree.Box(i).Payload)
		}
		key = "----:" + mean + ":" + name
	}

	data, ok := tree.Child(item, "data")
	if !ok {
		return "", "", nil
	}
	value, ok, err = decodeData(b.Type, tree.Box(data).Payload)
	if err != nil || !ok {
		return "", "", err
	}
	return key, value, nil
}

// decodeData converts a data box payload to text.
func decodeData(itemType string, payload []byte) (string, bool, error) {
	c := bytesource.NewCursor(payload, "data")
	typ := bytesource.Next[uint32](c, "type indicator") & 0x00FFFFFF
	c.Skip(4, "locale")
	if err := c.Err(); err != nil {
		return "", false, err
	}
	raw := c.Rest()

	switch itemType {
	case "trkn", "disk":
		if len(raw) < 6 {
			return "", false, fmt.Errorf("%s needs 6 bytes, got %d", itemType, len(raw))
		}
		n := binary.BigEndian.Uint16(raw[2:4])
		total := binary.BigEndian.Uint16(raw[4:6])
		if total == 0 {
			return strconv.Itoa(int(n)), true, nil
		}
		return fmt.Sprintf("%d/%d", n, total), true, nil
	}

	switch typ {
	case dataTypeUTF8, dataTypeImplicit:
		return cleanText(string(raw)), len(raw) > 0, nil
	case dataTypeUTF16:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		s, err := dec.Bytes(raw)
		if err != nil {
			return "", false, fmt.Errorf("utf-16 text: %w", err)
		}
		return cleanText(string(s)), true, nil
	case dataTypeBEInt, dataTypeBEUint:
		v, ok := beInt(raw, typ == dataTypeBEInt)
		if !ok {
			return "", false, fmt.Errorf("integer of %d bytes", len(raw))
		}
		return v, true, nil
	case dataTypeJPEG, dataTypePNG:
		return "", false, nil
	default:
		return "", false, nil
	}
}

func beInt(b []byte, signed bool) (string, bool) {
	var u uint64
	switch len(b) {
	case 1, 2, 3, 4, 8:
		for _, x := range b {
			u = u<<8 | uint64(x)
		}
	default:
		return "", false
	}
	if !signed {
		return strconv.FormatUint(u, 10), true
	}
	shift := 64 - 8*uint(len(b))
	return strconv.FormatInt(int64(u<<shift)>>shift, 10), true
}

// fullBoxString returns the text after the version and flags of a mean or
// name box.
func fullBoxString(p []byte) string {
	if len(p) < 4 {
		return ""
	}
	return cleanText(string(p[4:]))
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// printable renders an item type with 0xA9 shown as ©.
func printable(typ string) string {
	if strings.HasPrefix(typ, "\xA9") {
		return "©" + typ[1:]
	}
	return typ
}
