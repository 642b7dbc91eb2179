package etcpak

import (
	"fmt"
	"strings"
)

// Format identifies a 4x4 block-compressed texture format.
type Format uint8

const (
	// FormatETC1 is ETC1 RGB (8 bytes per block).
	FormatETC1 Format = iota + 1
	// FormatETC2RGB is ETC2 RGB8, a superset of ETC1 (8 bytes per block).
	FormatETC2RGB
	// FormatETC2RGBA is ETC2 RGBA8: an EAC alpha block followed by an ETC2 color block.
	FormatETC2RGBA
	// FormatETC2R11 is unsigned EAC R11 (8 bytes per block).
	FormatETC2R11
	// FormatETC2RG11 is unsigned EAC RG11: two R11 blocks, red then green.
	FormatETC2RG11
	// FormatBC1 is BC1 / DXT1 (8 bytes per block).
	FormatBC1
	// FormatBC3 is BC3 / DXT5: a BC4-style alpha block followed by a BC1 color block.
	FormatBC3
	// FormatBC4 is BC4 single channel (red), 8 bytes per block.
	FormatBC4
	// FormatBC5 is BC5: two BC4 blocks, red then green.
	FormatBC5
	// FormatBC7 is BC7 RGBA (16 bytes per block).
	FormatBC7
)

var formatNames = [...]string{
	FormatETC1:     "etc1",
	FormatETC2RGB:  "etc2-rgb",
	FormatETC2RGBA: "etc2-rgba",
	FormatETC2R11:  "etc2-r11",
	FormatETC2RG11: "etc2-rg11",
	FormatBC1:      "bc1",
	FormatBC3:      "bc3",
	FormatBC4:      "bc4",
	FormatBC5:      "bc5",
	FormatBC7:      "bc7",
}

// AllFormats lists every supported format in declaration order.
var AllFormats = []Format{
	FormatETC1, FormatETC2RGB, FormatETC2RGBA, FormatETC2R11, FormatETC2RG11,
	FormatBC1, FormatBC3, FormatBC4, FormatBC5, FormatBC7,
}

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	return f >= FormatETC1 && f <= FormatBC7
}

func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return formatNames[f]
}

// BlockBytes returns the encoded size of one 4x4 block.
func (f Format) BlockBytes() int {
	switch f {
	case FormatETC1, FormatETC2RGB, FormatETC2R11, FormatBC1, FormatBC4:
		return 8
	case FormatETC2RGBA, FormatETC2RG11, FormatBC3, FormatBC5, FormatBC7:
		return 16
	default:
		return 0
	}
}

// HasAlpha reports whether the format stores an alpha channel.
func (f Format) HasAlpha() bool {
	switch f {
	case FormatETC2RGBA, FormatBC3, FormatBC7:
		return true
	}
	return false
}

// IsETC reports whether the format belongs to the ETC/EAC family.
func (f Format) IsETC() bool {
	return f >= FormatETC1 && f <= FormatETC2RG11
}

// ParseFormat maps a format name (case-insensitive) to a Format.
//
// Besides the canonical String() names it accepts the common aliases dxt1, dxt5,
// rgtc1, rgtc2, bptc, etc2, r11 and rg11.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "etc1":
		return FormatETC1, nil
	case "etc2-rgb", "etc2", "etc2rgb":
		return FormatETC2RGB, nil
	case "etc2-rgba", "etc2rgba":
		return FormatETC2RGBA, nil
	case "etc2-r11", "r11", "eac-r11":
		return FormatETC2R11, nil
	case "etc2-rg11", "rg11", "eac-rg11":
		return FormatETC2RG11, nil
	case "bc1", "dxt1":
		return FormatBC1, nil
	case "bc3", "dxt5":
		return FormatBC3, nil
	case "bc4", "rgtc1":
		return FormatBC4, nil
	case "bc5", "rgtc2":
		return FormatBC5, nil
	case "bc7", "bptc":
		return FormatBC7, nil
	}
	return 0, newError(ErrBadFormat, fmt.Sprintf("etcpak: unknown format %q", s))
}
