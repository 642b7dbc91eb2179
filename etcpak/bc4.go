package etcpak

// BC4 blocks store two 8-bit endpoints followed by sixteen 3-bit indices,
// little-endian, texel i at bit 16+3i.

func bc4Palette(a0, a1 int) [8]int {
	var p [8]int
	p[0], p[1] = a0, a1
	if a0 > a1 {
		for k := 2; k < 8; k++ {
			p[k] = ((8-k)*a0 + (k-1)*a1) / 7
		}
	} else {
		for k := 2; k < 6; k++ {
			p[k] = ((6-k)*a0 + (k-1)*a1) / 5
		}
		p[6], p[7] = 0, 255
	}
	return p
}

func decodeBC4(src []byte, out *[16]uint8) {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(src[i])
	}
	p := bc4Palette(int(v&0xFF), int(v>>8&0xFF))
	for i := 0; i < 16; i++ {
		out[i] = uint8(p[v>>(16+3*i)&7])
	}
}

func putBC4(dst []byte, a0, a1 int, idx uint64) {
	v := uint64(a0) | uint64(a1)<<8 | idx<<16
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func bc4Indices(vals *[16]uint8, a0, a1 int) (uint64, int) {
	p := bc4Palette(a0, a1)
	var idx uint64
	total := 0
	for i, v := range vals {
		bestJ, bestE := 0, -1
		for j := 0; j < 8; j++ {
			e := sq(p[j] - int(v))
			if bestE < 0 || e < bestE {
				bestJ, bestE = j, e
			}
		}
		idx |= uint64(bestJ) << (3 * i)
		total += bestE
	}
	return idx, total
}

// encodeBC4 encodes one 8-bit channel with min/max endpoints in eight-level
// mode, followed by a single least-squares refinement of the endpoints.
func encodeBC4(vals *[16]uint8, dst []byte) {
	lo, hi := int(vals[0]), int(vals[0])
	for _, v := range vals[1:] {
		lo = min(lo, int(v))
		hi = max(hi, int(v))
	}
	if lo == hi {
		putBC4(dst, lo, lo, 0)
		return
	}

	a0, a1 := hi, lo
	idx, err := bc4Indices(vals, a0, a1)

	var aa, ab, bb, ax, bx float64
	for i, v := range vals {
		k := int(idx >> (3 * i) & 7)
		var a float64
		switch k {
		case 0:
			a = 1
		case 1:
			a = 0
		default:
			a = float64(8-k) / 7
		}
		b := 1 - a
		aa += a * a
		ab += a * b
		bb += b * b
		ax += a * float64(v)
		bx += b * float64(v)
	}
	if det := aa*bb - ab*ab; det != 0 {
		r0 := clamp255(int((ax*bb-bx*ab)/det + 0.5))
		r1 := clamp255(int((bx*aa-ax*ab)/det + 0.5))
		if r0 > r1 {
			if ridx, rerr := bc4Indices(vals, r0, r1); rerr < err {
				a0, a1, idx = r0, r1, ridx
			}
		}
	}
	putBC4(dst, a0, a1, idx)
}
