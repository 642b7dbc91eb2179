package etcpak

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Container identifies a texture file layout.
type Container uint8

const (
	ContainerPVR Container = iota + 1
	ContainerDDS
	ContainerKTX
)

func (c Container) String() string {
	switch c {
	case ContainerPVR:
		return "pvr"
	case ContainerDDS:
		return "dds"
	case ContainerKTX:
		return "ktx"
	}
	return fmt.Sprintf("Container(%d)", uint8(c))
}

// ParseContainer maps "pvr", "dds" or "ktx" to a Container.
func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pvr":
		return ContainerPVR, nil
	case "dds":
		return ContainerDDS, nil
	case "ktx":
		return ContainerKTX, nil
	}
	return 0, newError(ErrBadParam, fmt.Sprintf("etcpak: unknown container %q", s))
}

const (
	pvrMagic = 0x03525650
	ddsMagic = 0x20534444
	ktxMagic = 0x58544BAB

	pvrHeaderSize  = 52
	ddsHeaderSize  = 128
	dds10Extension = 20
	ktxHeaderSize  = 64
)

var ktxIdentifier = [12]byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x31, 0x31, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}

// Header describes a parsed or written texture file.
type Header struct {
	Container Container
	Format    Format
	Width     int
	Height    int
	MipLevels int

	// DataOffset is the byte offset of the first block of level 0.
	DataOffset int
}

func (h Header) String() string {
	return fmt.Sprintf("%s %s %dx%d, %d mip level(s)", strings.ToUpper(h.Container.String()), h.Format, h.Width, h.Height, h.MipLevels)
}

var pvrFormats = map[Format]uint32{
	FormatETC1:     6,
	FormatBC1:      7,
	FormatBC3:      11,
	FormatBC4:      12,
	FormatBC5:      13,
	FormatBC7:      15,
	FormatETC2RGB:  22,
	FormatETC2RGBA: 23,
	FormatETC2R11:  25,
	FormatETC2RG11: 26,
}

const (
	fourCCDXT1 = 0x31545844
	fourCCDXT5 = 0x35545844
	fourCCATI1 = 0x31495441
	fourCCATI2 = 0x32495441
	fourCCDX10 = 0x30315844
)

var dxgiFormats = map[uint32]Format{
	71: FormatBC1, 72: FormatBC1,
	77: FormatBC3, 78: FormatBC3,
	80: FormatBC4,
	83: FormatBC5,
	98: FormatBC7, 99: FormatBC7,
}

var ktxFormats = map[uint32]Format{
	0x8D64: FormatETC1,
	0x9274: FormatETC2RGB,
	0x9278: FormatETC2RGBA,
	0x9270: FormatETC2R11,
	0x9272: FormatETC2RG11,
	0x83F0: FormatBC1,
	0x83F1: FormatBC1,
	0x83F3: FormatBC3,
	0x8DBB: FormatBC4,
	0x8DBD: FormatBC5,
	0x8E8C: FormatBC7,
}

// ParseHeader identifies the container by its magic and decodes the fields
// needed to locate the block data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 4 {
		return Header{}, errShort("texture header", 4, len(data))
	}
	var (
		h   Header
		err error
	)
	switch binary.LittleEndian.Uint32(data) {
	case pvrMagic:
		h, err = parsePVR(data)
	case ddsMagic:
		h, err = parseDDS(data)
	case ktxMagic:
		h, err = parseKTX(data)
	default:
		return Header{}, newError(ErrBadMagic, "etcpak: unrecognized texture file magic")
	}
	if err != nil {
		return Header{}, err
	}
	if err := checkDimensions(h.Width, h.Height); err != nil {
		return Header{}, err
	}
	if h.MipLevels < 1 {
		h.MipLevels = 1
	}
	if h.MipLevels > MipLevelCount(h.Width, h.Height) {
		return Header{}, newError(ErrBadDimensions, fmt.Sprintf("etcpak: %d mip levels for a %dx%d image", h.MipLevels, h.Width, h.Height))
	}
	return h, nil
}

func parsePVR(data []byte) (Header, error) {
	if len(data) < pvrHeaderSize {
		return Header{}, errShort("pvr header", pvrHeaderSize, len(data))
	}
	w := func(i int) uint32 { return binary.LittleEndian.Uint32(data[4*i:]) }
	code := w(2)
	h := Header{Container: ContainerPVR, Height: int(w(6)), Width: int(w(7)), MipLevels: int(w(11))}
	for f, c := range pvrFormats {
		if c == code && w(3) == 0 {
			h.Format = f
		}
	}
	if h.Format == 0 {
		return Header{}, newError(ErrBadFormat, fmt.Sprintf("etcpak: unsupported pvr pixel format %d", code))
	}
	h.DataOffset = pvrHeaderSize + int(w(12))
	return h, nil
}

func parseDDS(data []byte) (Header, error) {
	if len(data) < ddsHeaderSize {
		return Header{}, errShort("dds header", ddsHeaderSize, len(data))
	}
	w := func(i int) uint32 { return binary.LittleEndian.Uint32(data[4*i:]) }
	h := Header{Container: ContainerDDS, Height: int(w(3)), Width: int(w(4)), MipLevels: int(w(7)), DataOffset: ddsHeaderSize}
	switch fourCC := w(21); fourCC {
	case fourCCDXT1:
		h.Format = FormatBC1
	case fourCCDXT5:
		h.Format = FormatBC3
	case fourCCATI1:
		h.Format = FormatBC4
	case fourCCATI2:
		h.Format = FormatBC5
	case fourCCDX10:
		if len(data) < ddsHeaderSize+dds10Extension {
			return Header{}, errShort("dds dx10 header", ddsHeaderSize+dds10Extension, len(data))
		}
		dxgi := w(32)
		f, ok := dxgiFormats[dxgi]
		if !ok {
			return Header{}, newError(ErrBadFormat, fmt.Sprintf("etcpak: unsupported dxgi format %d", dxgi))
		}
		h.Format = f
		h.DataOffset += dds10Extension
	default:
		return Header{}, newError(ErrBadFormat, fmt.Sprintf("etcpak: unsupported dds fourcc 0x%08x", fourCC))
	}
	return h, nil
}

func parseKTX(data []byte) (Header, error) {
	if len(data) < ktxHeaderSize {
		return Header{}, errShort("ktx header", ktxHeaderSize, len(data))
	}
	if [12]byte(data[:12]) != ktxIdentifier {
		return Header{}, newError(ErrBadMagic, "etcpak: invalid ktx identifier")
	}
	w := func(i int) uint32 { return binary.LittleEndian.Uint32(data[4*i:]) }
	if w(3) != 0x04030201 {
		return Header{}, newError(ErrNotImplemented, "etcpak: big-endian ktx files are not supported")
	}
	gl := w(7)
	f, ok := ktxFormats[gl]
	if !ok {
		return Header{}, newError(ErrBadFormat, fmt.Sprintf("etcpak: unsupported ktx internal format 0x%04x", gl))
	}
	return Header{
		Container:  ContainerKTX,
		Format:     f,
		Width:      int(w(9)),
		Height:     int(w(10)),
		MipLevels:  int(w(14)),
		DataOffset: ktxHeaderSize + int(w(15)) + 4,
	}, nil
}

// MarshalHeader returns the file header for a texture. KTX output is not
// supported; ETC formats cannot be stored in DDS.
func MarshalHeader(container Container, format Format, width, height, mipLevels int) ([]byte, error) {
	if !format.Valid() {
		return nil, newError(ErrBadFormat, "etcpak: invalid format")
	}
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if mipLevels < 1 || mipLevels > MipLevelCount(width, height) {
		return nil, newError(ErrBadDimensions, fmt.Sprintf("etcpak: %d mip levels for a %dx%d image", mipLevels, width, height))
	}

	switch container {
	case ContainerPVR:
		return marshalPVR(format, width, height, mipLevels), nil
	case ContainerDDS:
		return marshalDDS(format, width, height, mipLevels)
	case ContainerKTX:
		return nil, newError(ErrNotImplemented, "etcpak: writing ktx files is not supported")
	}
	return nil, newError(ErrBadParam, "etcpak: invalid container")
}

func marshalPVR(format Format, width, height, mipLevels int) []byte {
	out := make([]byte, pvrHeaderSize)
	put := func(i int, v uint32) { binary.LittleEndian.PutUint32(out[4*i:], v) }
	put(0, pvrMagic)
	put(2, pvrFormats[format])
	put(6, uint32(height))
	put(7, uint32(width))
	put(8, 1)
	put(9, 1)
	put(10, 1)
	put(11, uint32(mipLevels))
	return out
}

func marshalDDS(format Format, width, height, mipLevels int) ([]byte, error) {
	var fourCC, dxgi uint32
	switch format {
	case FormatBC1:
		fourCC = fourCCDXT1
	case FormatBC3:
		fourCC = fourCCDXT5
	case FormatBC4:
		fourCC, dxgi = fourCCDX10, 80
	case FormatBC5:
		fourCC, dxgi = fourCCDX10, 83
	case FormatBC7:
		fourCC, dxgi = fourCCDX10, 98
	default:
		return nil, newError(ErrBadFormat, fmt.Sprintf("etcpak: %s cannot be stored in dds", format))
	}

	size := ddsHeaderSize
	if fourCC == fourCCDX10 {
		size += dds10Extension
	}
	out := make([]byte, size)
	put := func(i int, v uint32) { binary.LittleEndian.PutUint32(out[4*i:], v) }

	const (
		flagsRequired   = 0x1 | 0x2 | 0x4 | 0x1000
		flagLinearSize  = 0x80000
		flagMipMapCount = 0x20000
		capsTexture     = 0x1000
		capsComplex     = 0x8
		capsMipMap      = 0x400000
		pfFourCC        = 0x4
	)
	flags, caps := uint32(flagsRequired|flagLinearSize), uint32(capsTexture)
	if mipLevels > 1 {
		flags |= flagMipMapCount
		caps |= capsComplex | capsMipMap
	}

	put(0, ddsMagic)
	put(1, 124)
	put(2, flags)
	put(3, uint32(height))
	put(4, uint32(width))
	put(5, uint32(MipLevelSize(format, width, height, 0)))
	put(7, uint32(mipLevels))
	put(19, 32)
	put(20, pfFourCC)
	put(21, fourCC)
	put(27, caps)
	if dxgi != 0 {
		put(32, dxgi)
		put(33, 3) // texture2d
		put(35, 1) // array size
	}
	return out, nil
}

// ParseFile parses a texture file and returns one block slice per mip
// level. The slices alias data.
func ParseFile(data []byte) (Header, [][]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}

	levels := make([][]byte, h.MipLevels)
	off := h.DataOffset
	for i := range levels {
		if h.Container == ContainerKTX && i > 0 {
			off += 4
		}
		n := MipLevelSize(h.Format, h.Width, h.Height, i)
		if off+n > len(data) {
			return Header{}, nil, errShort(fmt.Sprintf("%s mip level %d", h.Container, i), off+n, len(data))
		}
		levels[i] = data[off : off+n]
		off += n
	}
	return h, levels, nil
}

func errShort(what string, want, got int) error {
	return newError(ErrShortBuffer, fmt.Sprintf("etcpak: %s: unexpected EOF: want %d bytes, got %d", what, want, got))
}
