package etcpak

import "image/color"

// ETC words are assembled in the standard 64-bit layout: base colors and
// control bits in the high half, selector LSBs in bits 0..15 and MSBs in bits
// 16..31, both indexed by the column-major texel number x*4+y.

const (
	etcDiffBit = 1 << 33
	etcFlipBit = 1 << 32
)

func etcTexel(i int) int { return (i&3)<<2 | i>>2 } // row-major index -> x*4+y

func setSelector(w *uint64, p, idx int) {
	*w |= uint64(idx&1) << p
	*w |= uint64(idx>>1) << (16 + p)
}

// encodeETCSolid encodes a uniform color in differential mode with a zero
// delta, searching every table and selector for the closest reachable color.
func encodeETCSolid(ctx *CodecContext, c color.NRGBA) uint64 {
	bestErr := -1
	var bestT, bestJ int
	for t := 0; t < 8; t++ {
		for j := 0; j < 4; j++ {
			e := int(ctx.etcSolid[t][j][c.R].err) + int(ctx.etcSolid[t][j][c.G].err) + int(ctx.etcSolid[t][j][c.B].err)
			if bestErr < 0 || e < bestErr {
				bestErr, bestT, bestJ = e, t, j
			}
		}
	}

	r := uint64(ctx.etcSolid[bestT][bestJ][c.R].base)
	g := uint64(ctx.etcSolid[bestT][bestJ][c.G].base)
	b := uint64(ctx.etcSolid[bestT][bestJ][c.B].base)
	w := r<<59 | g<<51 | b<<43 | uint64(bestT)<<37 | uint64(bestT)<<34 | etcDiffBit
	if bestJ&1 != 0 {
		w |= 0xFFFF
	}
	if bestJ&2 != 0 {
		w |= 0xFFFF << 16
	}
	return w
}

// buildETCSolidTable finds, for every table, selector and 8-bit value, the
// 5-bit base whose modified expansion lands closest to the value.
func buildETCSolidTable(tbl *[8][4][256]etcSolidEntry) {
	for t := 0; t < 8; t++ {
		for j := 0; j < 4; j++ {
			mod := etcModifiers[t][j]
			for v := 0; v < 256; v++ {
				best := etcSolidEntry{err: 0xFFFF}
				for b := 0; b < 32; b++ {
					e := sq(clamp255(expand5(b)+mod) - v)
					if e < int(best.err) {
						best = etcSolidEntry{base: uint8(b), err: uint16(e)}
					}
				}
				tbl[t][j][v] = best
			}
		}
	}
}

type etcSolidEntry struct {
	base uint8
	err  uint16
}

// encodeETC1 produces an ETC1 block: individual or differential mode with the
// split orientation whose quantized half colors leave the least per-texel
// error.
func encodeETC1(ctx *CodecContext, t *Tile) uint64 {
	if t.solid() {
		return encodeETCSolid(ctx, t[0])
	}

	avg := halfAveragesRGB(t)

	// Candidates: individual no-flip, individual flip, differential no-flip,
	// differential flip. Each holds the quantized base of both halves.
	type candidate struct {
		base [2][3]int // quantized (4 or 5 bit)
		col  [2][3]int // expanded
		diff bool
		flip bool
		err  int
	}
	var cands [4]candidate
	for k := 0; k < 4; k++ {
		c := &cands[k]
		c.diff = k >= 2
		c.flip = k&1 != 0
		a0, a1 := avg[0], avg[1]
		if c.flip {
			a0, a1 = avg[2], avg[3]
		}
		for ch := 0; ch < 3; ch++ {
			if c.diff {
				b0 := mul8bit(a0[ch], 31)
				d := clampInt(mul8bit(a1[ch], 31)-b0, -4, 3)
				c.base[0][ch], c.base[1][ch] = b0, d
				c.col[0][ch], c.col[1][ch] = expand5(b0), expand5(b0+d)
			} else {
				q0, q1 := mul8bit(a0[ch], 15), mul8bit(a1[ch], 15)
				c.base[0][ch], c.base[1][ch] = q0, q1
				c.col[0][ch], c.col[1][ch] = expand4(q0), expand4(q1)
			}
		}
		c.err = etcHalfError(t, c.col[0], c.flip, 0) + etcHalfError(t, c.col[1], c.flip, 1)
	}
	best := 0
	for k := 1; k < 4; k++ {
		if cands[k].err < cands[best].err {
			best = k
		}
	}
	c := cands[best]

	var w uint64
	for ch := 0; ch < 3; ch++ {
		shift := 59 - 8*ch
		if c.diff {
			w |= uint64(c.base[0][ch]) << shift
			w |= uint64(c.base[1][ch]&7) << (shift - 3)
		} else {
			w |= uint64(c.base[0][ch]) << (shift + 1)
			w |= uint64(c.base[1][ch]) << (shift - 3)
		}
	}
	if c.diff {
		w |= etcDiffBit
	}
	if c.flip {
		w |= etcFlipBit
	}

	for half := 0; half < 2; half++ {
		tbl, sels := etcFitHalf(t, c.col[half], c.flip, half)
		w |= uint64(tbl) << (37 - 3*half)
		w |= sels
	}
	return w
}

// etcHalfError sums the squared RGB distance of every texel in one half of
// the tile from col.
func etcHalfError(t *Tile, col [3]int, flip bool, half int) int {
	e := 0
	for i := range t {
		h := (i & 3) >> 1
		if flip {
			h = i >> 3
		}
		if h != half {
			continue
		}
		e += sq(int(t[i].R)-col[0]) + sq(int(t[i].G)-col[1]) + sq(int(t[i].B)-col[2])
	}
	return e
}

// etcFitHalf picks the modifier table and selectors for one sub-block by the
// squared RGB error of the clamped modified base color.
func etcFitHalf(t *Tile, base [3]int, flip bool, half int) (int, uint64) {
	var px [8][3]int
	var pos [8]int
	n := 0
	for i := 0; i < 16; i++ {
		x, y := i&3, i>>2
		h := x >> 1
		if flip {
			h = y >> 1
		}
		if h != half {
			continue
		}
		c := t[i]
		px[n] = [3]int{int(c.R), int(c.G), int(c.B)}
		pos[n] = etcTexel(i)
		n++
	}

	bestTbl, bestErr := 0, -1
	var bestSel [8]int
	for tb := 0; tb < 8; tb++ {
		var sel [8]int
		total := 0
		for k := 0; k < n && (bestErr < 0 || total < bestErr); k++ {
			be := -1
			for j := 0; j < 4; j++ {
				m := etcModifiers[tb][j]
				e := 0
				for ch := 0; ch < 3; ch++ {
					e += sq(clamp255(base[ch]+m) - px[k][ch])
				}
				if be < 0 || e < be {
					be, sel[k] = e, j
				}
			}
			total += be
		}
		if bestErr < 0 || total < bestErr {
			bestErr, bestTbl, bestSel = total, tb, sel
		}
	}

	var w uint64
	for k := 0; k < n; k++ {
		setSelector(&w, pos[k], bestSel[k])
	}
	return bestTbl, w
}
