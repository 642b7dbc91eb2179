package etcpak

import "encoding/binary"

// bitWriter packs fields LSB-first into a 128-bit block.
type bitWriter struct {
	buf [16]byte
	pos uint
}

func (w *bitWriter) setBits(v uint32, n uint) {
	if w.pos+n > 128 {
		panic("etcpak: bit writer overflow")
	}
	for n > 0 {
		byteIdx := w.pos >> 3
		shift := w.pos & 7
		take := 8 - shift
		if take > n {
			take = n
		}
		w.buf[byteIdx] |= byte((v & (1<<take - 1)) << shift)
		v >>= take
		n -= take
		w.pos += take
	}
}

// bitReader reads fields LSB-first from a 128-bit block.
type bitReader struct {
	lo, hi uint64
	pos    uint
}

func newBitReader(b []byte) bitReader {
	return bitReader{
		lo: binary.LittleEndian.Uint64(b[0:8]),
		hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func (r *bitReader) get(n uint) uint32 {
	var v uint64
	switch {
	case r.pos >= 64:
		v = r.hi >> (r.pos - 64)
	case r.pos+n <= 64:
		v = r.lo >> r.pos
	default:
		v = r.lo>>r.pos | r.hi<<(64-r.pos)
	}
	r.pos += n
	return uint32(v & (1<<n - 1))
}

// ETC and EAC blocks are big-endian 64-bit words.
func putBlock64(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }
func block64(src []byte) uint64      { return binary.BigEndian.Uint64(src) }
