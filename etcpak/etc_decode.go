package etcpak

import "image/color"

func etcSelector(w uint64, p int) int {
	return int(w>>p&1) | int(w>>(16+p)&1)<<1
}

// decodeETC decodes an ETC1 or ETC2 RGB word into t with alpha 255.
func decodeETC(w uint64, t *Tile) {
	if w&etcDiffBit == 0 {
		var base [2][3]int
		for ch := 0; ch < 3; ch++ {
			shift := 60 - 8*ch
			base[0][ch] = expand4(int(w >> shift & 15))
			base[1][ch] = expand4(int(w >> (shift - 4) & 15))
		}
		decodeETCSubblocks(w, base, t)
		return
	}

	var base [2][3]int
	for ch := 0; ch < 3; ch++ {
		b := int(w >> (59 - 8*ch) & 31)
		d := etcDiffDeltas[w>>(56-8*ch)&7]
		if b+d < 0 || b+d > 31 {
			switch ch {
			case 0:
				decodeETCT(w, t)
			case 1:
				decodeETCH(w, t)
			default:
				decodeETCPlanar(w, t)
			}
			return
		}
		base[0][ch] = expand5(b)
		base[1][ch] = expand5(b + d)
	}
	decodeETCSubblocks(w, base, t)
}

func decodeETCSubblocks(w uint64, base [2][3]int, t *Tile) {
	flip := w&etcFlipBit != 0
	tbl := [2]int{int(w >> 37 & 7), int(w >> 34 & 7)}
	for i := 0; i < 16; i++ {
		x, y := i&3, i>>2
		h := x >> 1
		if flip {
			h = y >> 1
		}
		mod := etcModifiers[tbl[h]][etcSelector(w, etcTexel(i))]
		t[i] = color.NRGBA{
			R: uint8(clamp255(base[h][0] + mod)),
			G: uint8(clamp255(base[h][1] + mod)),
			B: uint8(clamp255(base[h][2] + mod)),
			A: 255,
		}
	}
}

func decodeETCPaint(w uint64, paint [4][3]int, t *Tile) {
	for i := 0; i < 16; i++ {
		c := paint[etcSelector(w, etcTexel(i))]
		t[i] = color.NRGBA{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: 255}
	}
}

func etcTColors(w uint64) (c0, c2 [3]int, dist int) {
	c0 = [3]int{
		expand4(int(w>>57&12 | w>>56&3)),
		expand4(int(w >> 52 & 15)),
		expand4(int(w >> 48 & 15)),
	}
	c2 = [3]int{
		expand4(int(w >> 44 & 15)),
		expand4(int(w >> 40 & 15)),
		expand4(int(w >> 36 & 15)),
	}
	dist = etcDistances[w>>33&6|w>>32&1]
	return c0, c2, dist
}

func decodeETCT(w uint64, t *Tile) {
	c0, c2, d := etcTColors(w)
	var paint [4][3]int
	for ch := 0; ch < 3; ch++ {
		paint[0][ch] = c0[ch]
		paint[1][ch] = clamp255(c2[ch] + d)
		paint[2][ch] = c2[ch]
		paint[3][ch] = clamp255(c2[ch] - d)
	}
	decodeETCPaint(w, paint, t)
}

func etcHColors(w uint64) (q0, q2 [3]int) {
	q0 = [3]int{
		int(w >> 59 & 15),
		int(w>>55&14 | w>>52&1),
		int(w>>48&8 | w>>47&7),
	}
	q2 = [3]int{
		int(w >> 43 & 15),
		int(w >> 39 & 15),
		int(w >> 35 & 15),
	}
	return q0, q2
}

func packRGB444(q [3]int) int { return q[0]<<8 | q[1]<<4 | q[2] }

func decodeETCH(w uint64, t *Tile) {
	q0, q2 := etcHColors(w)
	idx := int(w>>32&4 | w>>31&2)
	if packRGB444(q0) >= packRGB444(q2) {
		idx |= 1
	}
	d := etcDistances[idx]
	var paint [4][3]int
	for ch := 0; ch < 3; ch++ {
		c0, c2 := expand4(q0[ch]), expand4(q2[ch])
		paint[0][ch] = clamp255(c0 + d)
		paint[1][ch] = clamp255(c0 - d)
		paint[2][ch] = clamp255(c2 + d)
		paint[3][ch] = clamp255(c2 - d)
	}
	decodeETCPaint(w, paint, t)
}

type planarCoeffs struct {
	o, h, v [3]int // expanded to 8 bits
}

func etcPlanarCoeffs(w uint64) planarCoeffs {
	ro := int(w >> 57 & 63)
	gol := int(w>>56&1)<<6 | int(w>>49&63)
	bo := int(w>>48&1)<<5 | int(w>>43&3)<<3 | int(w>>39&7)
	rh := int(w>>34&31)<<1 | int(w>>32&1)
	gh := int(w >> 25 & 127)
	bh := int(w >> 19 & 63)
	rv := int(w >> 13 & 63)
	gv := int(w >> 6 & 127)
	bv := int(w & 63)
	return planarCoeffs{
		o: [3]int{expand6(ro), expand7(gol), expand6(bo)},
		h: [3]int{expand6(rh), expand7(gh), expand6(bh)},
		v: [3]int{expand6(rv), expand7(gv), expand6(bv)},
	}
}

func (p *planarCoeffs) at(x, y, ch int) int {
	return clamp255((x*(p.h[ch]-p.o[ch]) + y*(p.v[ch]-p.o[ch]) + 4*p.o[ch] + 2) >> 2)
}

func decodeETCPlanar(w uint64, t *Tile) {
	p := etcPlanarCoeffs(w)
	for i := 0; i < 16; i++ {
		x, y := i&3, i>>2
		t[i] = color.NRGBA{
			R: uint8(p.at(x, y, 0)),
			G: uint8(p.at(x, y, 1)),
			B: uint8(p.at(x, y, 2)),
			A: 255,
		}
	}
}

// decodeEAC8 decodes an EAC word to 8-bit values in row-major order. The same
// expression serves ETC2 alpha and R11 truncated to 8 bits.
func decodeEAC8(w uint64, out *[16]uint8) {
	base := int(w >> 56)
	mul := int(w >> 52 & 15)
	tbl := &eacModifiers[w>>48&15]
	for i := 0; i < 16; i++ {
		p := etcTexel(i)
		idx := w >> (3 * (15 - p)) & 7
		out[i] = uint8(clamp255(base + tbl[idx]*mul))
	}
}

// decodeR11 decodes an R11 word to 11-bit values in row-major order.
func decodeR11(w uint64, out *[16]uint16) {
	base := int(w >> 56)
	mul := int(w >> 52 & 15)
	tbl := &eacModifiers[w>>48&15]
	for i := 0; i < 16; i++ {
		p := etcTexel(i)
		mod := tbl[w>>(3*(15-p))&7]
		var v int
		if mul == 0 {
			v = base*8 + 4 + mod
		} else {
			v = base*8 + 4 + mod*mul*8
		}
		out[i] = uint16(clampInt(v, 0, 2047))
	}
}
