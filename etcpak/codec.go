package etcpak

import "fmt"

// EncodeBlock encodes one tile with the default context and the medium
// preset for format.
func EncodeBlock(format Format, t *Tile) ([]byte, error) {
	cfg, err := ConfigInit(format, EncodeMedium)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, format.BlockBytes())
	if err := DefaultContext().EncodeBlock(&cfg, t, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// EncodeBlock encodes t into dst, which must be exactly
// cfg.Format.BlockBytes() long. The tile is not modified.
func (c *CodecContext) EncodeBlock(cfg *Config, t *Tile, dst []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if cfg == nil || t == nil {
		return newError(ErrBadParam, "etcpak: nil config or tile")
	}
	if !cfg.Format.Valid() {
		return newError(ErrBadFormat, "etcpak: invalid format")
	}
	if len(dst) != cfg.Format.BlockBytes() {
		return newError(ErrBadBlockSize, fmt.Sprintf("etcpak: %s block needs %d bytes, got %d", cfg.Format, cfg.Format.BlockBytes(), len(dst)))
	}
	c.encodeBlock(cfg, t, dst)
	return nil
}

// encodeBlock assumes a ready context, a valid format and a correctly sized
// destination.
func (c *CodecContext) encodeBlock(cfg *Config, t *Tile, dst []byte) {
	src := t
	if cfg.Dither {
		switch cfg.Format {
		case FormatETC1, FormatBC1, FormatBC3:
			tmp := *t
			ditherTile(c, &tmp)
			src = &tmp
		}
	}

	var ch [16]uint8
	switch cfg.Format {
	case FormatETC1:
		putBlock64(dst, encodeETC1(c, src))
	case FormatETC2RGB:
		putBlock64(dst, encodeETC2(c, src, cfg.Heuristics))
	case FormatETC2RGBA:
		tileAlpha(t, &ch)
		putBlock64(dst[:8], encodeEAC(&ch))
		putBlock64(dst[8:], encodeETC2(c, src, cfg.Heuristics))
	case FormatETC2R11:
		tileRed(t, &ch)
		putBlock64(dst, encodeEAC(&ch))
	case FormatETC2RG11:
		tileRed(t, &ch)
		putBlock64(dst[:8], encodeEAC(&ch))
		tileGreen(t, &ch)
		putBlock64(dst[8:], encodeEAC(&ch))
	case FormatBC1:
		encodeBC1(c, src, dst)
	case FormatBC3:
		// Alpha comes from the undithered tile.
		tileAlpha(t, &ch)
		encodeBC4(&ch, dst[:8])
		encodeBC1(c, src, dst[8:])
	case FormatBC4:
		tileRed(t, &ch)
		encodeBC4(&ch, dst)
	case FormatBC5:
		tileRed(t, &ch)
		encodeBC4(&ch, dst[:8])
		tileGreen(t, &ch)
		encodeBC4(&ch, dst[8:])
	case FormatBC7:
		encodeBC7(c, t, &cfg.BC7, dst)
	}
}

// DecodeBlock decodes one block into t. Single and dual channel formats
// decode into R (and G) with the remaining color channels zero and alpha
// 255. R11 values are truncated to 8 bits.
func DecodeBlock(format Format, block []byte, t *Tile) error {
	if t == nil {
		return newError(ErrBadParam, "etcpak: nil tile")
	}
	if !format.Valid() {
		return newError(ErrBadFormat, "etcpak: invalid format")
	}
	if len(block) != format.BlockBytes() {
		return newError(ErrBadBlockSize, fmt.Sprintf("etcpak: %s block needs %d bytes, got %d", format, format.BlockBytes(), len(block)))
	}
	decodeBlock(format, block, t)
	return nil
}

func decodeBlock(format Format, block []byte, t *Tile) {
	var ch [16]uint8
	switch format {
	case FormatETC1, FormatETC2RGB:
		decodeETC(block64(block), t)
	case FormatETC2RGBA:
		decodeETC(block64(block[8:]), t)
		decodeEAC8(block64(block[:8]), &ch)
		for i := range t {
			t[i].A = ch[i]
		}
	case FormatETC2R11:
		decodeR11To8(block64(block), &ch)
		setRG(t, &ch, nil)
	case FormatETC2RG11:
		var g [16]uint8
		decodeR11To8(block64(block[:8]), &ch)
		decodeR11To8(block64(block[8:]), &g)
		setRG(t, &ch, &g)
	case FormatBC1:
		decodeBC1(block, t, false)
	case FormatBC3:
		decodeBC1(block[8:], t, true)
		decodeBC4(block[:8], &ch)
		for i := range t {
			t[i].A = ch[i]
		}
	case FormatBC4:
		decodeBC4(block, &ch)
		setRG(t, &ch, nil)
	case FormatBC5:
		var g [16]uint8
		decodeBC4(block[:8], &ch)
		decodeBC4(block[8:], &g)
		setRG(t, &ch, &g)
	case FormatBC7:
		decodeBC7(block, t)
	}
}

func decodeR11To8(w uint64, out *[16]uint8) {
	var v [16]uint16
	decodeR11(w, &v)
	for i := range v {
		out[i] = uint8(v[i] >> 3)
	}
}

func setRG(t *Tile, r, g *[16]uint8) {
	for i := range t {
		t[i].R, t[i].G, t[i].B, t[i].A = r[i], 0, 0, 255
		if g != nil {
			t[i].G = g[i]
		}
	}
}
