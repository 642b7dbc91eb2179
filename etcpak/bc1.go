package etcpak

import (
	"encoding/binary"
	"image/color"
)

func pack565(r, g, b int) uint16 {
	return uint16(r<<11 | g<<5 | b)
}

func unpack565(c uint16) (r, g, b int) {
	return expand5(int(c >> 11)), expand6(int(c >> 5 & 63)), expand5(int(c & 31))
}

// bc1Palette returns the four palette entries of a BC1 color block. With
// fourColor set the block is always decoded in four-color mode, as BC3
// requires for its color half.
func bc1Palette(c0, c1 uint16, fourColor bool) [4]color.NRGBA {
	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)
	var p [4]color.NRGBA
	p[0] = color.NRGBA{uint8(r0), uint8(g0), uint8(b0), 255}
	p[1] = color.NRGBA{uint8(r1), uint8(g1), uint8(b1), 255}
	if c0 > c1 || fourColor {
		p[2] = color.NRGBA{uint8((2*r0 + r1) / 3), uint8((2*g0 + g1) / 3), uint8((2*b0 + b1) / 3), 255}
		p[3] = color.NRGBA{uint8((r0 + 2*r1) / 3), uint8((g0 + 2*g1) / 3), uint8((b0 + 2*b1) / 3), 255}
	} else {
		p[2] = color.NRGBA{uint8((r0 + r1) / 2), uint8((g0 + g1) / 2), uint8((b0 + b1) / 2), 255}
		p[3] = color.NRGBA{}
	}
	return p
}

func decodeBC1(src []byte, t *Tile, fourColor bool) {
	c0 := binary.LittleEndian.Uint16(src[0:2])
	c1 := binary.LittleEndian.Uint16(src[2:4])
	idx := binary.LittleEndian.Uint32(src[4:8])
	p := bc1Palette(c0, c1, fourColor)
	for i := 0; i < 16; i++ {
		t[i] = p[idx>>(2*i)&3]
	}
}

func putBC1(dst []byte, c0, c1 uint16, idx uint32) {
	binary.LittleEndian.PutUint16(dst[0:2], c0)
	binary.LittleEndian.PutUint16(dst[2:4], c1)
	binary.LittleEndian.PutUint32(dst[4:8], idx)
}

// buildBC1SolidTables finds, for every 8-bit value, the endpoint pair whose
// two-thirds interpolant reproduces it most closely.
func buildBC1SolidTables(m5, m6 *[256][2]uint8) {
	build := func(out *[256][2]uint8, size int, expand func(int) int) {
		for v := 0; v < 256; v++ {
			bestE := -1
			for a := 0; a < size; a++ {
				ea := expand(a)
				for b := 0; b < size; b++ {
					eb := expand(b)
					e := sq((2*ea+eb)/3 - v)
					if bestE < 0 || e < bestE {
						bestE = e
						out[v] = [2]uint8{uint8(a), uint8(b)}
					}
				}
			}
		}
	}
	build(m5, 32, expand5)
	build(m6, 64, expand6)
}

func encodeBC1Solid(ctx *CodecContext, c color.NRGBA, dst []byte) {
	r := ctx.bc1Match5[c.R]
	g := ctx.bc1Match6[c.G]
	b := ctx.bc1Match5[c.B]
	c0 := pack565(int(r[0]), int(g[0]), int(b[0]))
	c1 := pack565(int(r[1]), int(g[1]), int(b[1]))
	var idx uint32 = 0xAAAAAAAA // index 2 everywhere
	switch {
	case c0 < c1:
		c0, c1 = c1, c0
		idx = 0xFFFFFFFF
	case c0 == c1:
		idx = 0
	}
	putBC1(dst, c0, c1, idx)
}

// encodeBC1 encodes the RGB part of a tile as a four-color BC1 block.
func encodeBC1(ctx *CodecContext, t *Tile, dst []byte) {
	if t.solidRGB() {
		encodeBC1Solid(ctx, t[0], dst)
		return
	}

	var lo, hi, mean [3]int
	lo = [3]int{255, 255, 255}
	for i := range t {
		for ch := 0; ch < 3; ch++ {
			v := channel(t[i], ch)
			lo[ch] = min(lo[ch], v)
			hi[ch] = max(hi[ch], v)
			mean[ch] += v
		}
	}
	for ch := 0; ch < 3; ch++ {
		mean[ch] = (mean[ch] + 8) / 16
		inset := (hi[ch] - lo[ch]) >> 4
		lo[ch] += inset
		hi[ch] -= inset
	}

	// Orient the box diagonal along the widest channel: any channel that runs
	// against it has its extents swapped.
	axis := 1
	for ch := 0; ch < 3; ch++ {
		if hi[ch]-lo[ch] > hi[axis]-lo[axis] {
			axis = ch
		}
	}
	var cov [3]int
	for i := range t {
		da := channel(t[i], axis) - mean[axis]
		for ch := 0; ch < 3; ch++ {
			cov[ch] += (channel(t[i], ch) - mean[ch]) * da
		}
	}
	for ch := 0; ch < 3; ch++ {
		if cov[ch] < 0 {
			lo[ch], hi[ch] = hi[ch], lo[ch]
		}
	}

	c0 := pack565(mul8bit(hi[0], 31), mul8bit(hi[1], 63), mul8bit(hi[2], 31))
	c1 := pack565(mul8bit(lo[0], 31), mul8bit(lo[1], 63), mul8bit(lo[2], 31))
	idx, err := bc1Indices(t, &c0, &c1)

	if r0, r1, ok := bc1LeastSquares(t, idx); ok {
		ridx, rerr := bc1Indices(t, &r0, &r1)
		if rerr < err {
			c0, c1, idx = r0, r1, ridx
		}
	}
	putBC1(dst, c0, c1, idx)
}

// bc1Indices orders the endpoints for four-color mode and assigns each texel
// its nearest palette entry.
func bc1Indices(t *Tile, c0, c1 *uint16) (uint32, int) {
	if *c0 < *c1 {
		*c0, *c1 = *c1, *c0
	}
	if *c0 == *c1 {
		p := bc1Palette(*c0, *c1, true)
		e := 0
		for i := range t {
			e += rgbDist(t[i], p[0])
		}
		return 0, e
	}

	p := bc1Palette(*c0, *c1, false)
	var idx uint32
	total := 0
	for i := range t {
		bestJ, bestE := 0, -1
		for j := 0; j < 4; j++ {
			e := rgbDist(t[i], p[j])
			if bestE < 0 || e < bestE {
				bestJ, bestE = j, e
			}
		}
		idx |= uint32(bestJ) << (2 * i)
		total += bestE
	}
	return idx, total
}

var bc1Weights = [4]float64{1, 0, 2.0 / 3, 1.0 / 3}

// bc1LeastSquares solves for the endpoints that best fit the current index
// assignment.
func bc1LeastSquares(t *Tile, idx uint32) (uint16, uint16, bool) {
	var aa, ab, bb float64
	var ax, bx [3]float64
	for i := range t {
		a := bc1Weights[idx>>(2*i)&3]
		b := 1 - a
		aa += a * a
		ab += a * b
		bb += b * b
		for ch := 0; ch < 3; ch++ {
			v := float64(channel(t[i], ch))
			ax[ch] += a * v
			bx[ch] += b * v
		}
	}
	det := aa*bb - ab*ab
	if det == 0 {
		return 0, 0, false
	}
	var e0, e1 [3]int
	for ch := 0; ch < 3; ch++ {
		e0[ch] = clamp255(int((ax[ch]*bb-bx[ch]*ab)/det + 0.5))
		e1[ch] = clamp255(int((bx[ch]*aa-ax[ch]*ab)/det + 0.5))
	}
	c0 := pack565(mul8bit(e0[0], 31), mul8bit(e0[1], 63), mul8bit(e0[2], 31))
	c1 := pack565(mul8bit(e1[0], 31), mul8bit(e1[1], 63), mul8bit(e1[2], 31))
	return c0, c1, true
}

func rgbDist(a, b color.NRGBA) int {
	return sq(int(a.R)-int(b.R)) + sq(int(a.G)-int(b.G)) + sq(int(a.B)-int(b.B))
}

func (t *Tile) solidRGB() bool {
	c := t[0]
	for i := 1; i < 16; i++ {
		if t[i].R != c.R || t[i].G != c.G || t[i].B != c.B {
			return false
		}
	}
	return true
}
