package etcpak

import "math"

// With heuristics on, T and H are skipped for a tile whose luma spread is at
// most thMinLumaRange once the best candidate so far is within thMaxSkipErr
// (a squared error of 4 per channel and texel).
const (
	thMinLumaRange = 24
	thMaxSkipErr   = 16 * 3 * 4
)

// encodeETC2 encodes an ETC2 RGB block. The ETC1 encoding is always a
// candidate; planar, T and H encodings replace it only when their decoded
// error is strictly lower.
func encodeETC2(ctx *CodecContext, t *Tile, heuristics bool) uint64 {
	best := encodeETC1(ctx, t)
	if t.solid() {
		return best
	}

	var dec Tile
	decodeETC(best, &dec)
	bestErr := tileErrRGB(t, &dec)
	try := func(w uint64) {
		decodeETC(w, &dec)
		if e := tileErrRGB(t, &dec); e < bestErr {
			best, bestErr = w, e
		}
	}

	if bestErr > 0 {
		try(encodeETCPlanar(t))
	}

	tryTH := bestErr > 0
	if heuristics && tryTH {
		lo, hi := lumaRange(t)
		tryTH = hi-lo > thMinLumaRange || bestErr > thMaxSkipErr
	}
	if tryTH {
		c0, c1 := splitClusters(t)
		q0, q1 := quantize444(c0), quantize444(c1)
		try(encodeETCT(t, q0, q1))
		try(encodeETCT(t, q1, q0))
		try(encodeETCH(t, q0, q1))
	}
	return best
}

func luma(r, g, b uint8) int {
	return (int(r)*77 + int(g)*151 + int(b)*28) >> 8
}

func lumaRange(t *Tile) (lo, hi int) {
	lo, hi = 255, 0
	for i := range t {
		l := luma(t[i].R, t[i].G, t[i].B)
		lo = min(lo, l)
		hi = max(hi, l)
	}
	return lo, hi
}

func tileErrRGB(a, b *Tile) int {
	e := 0
	for i := range a {
		e += sq(int(a[i].R)-int(b[i].R)) + sq(int(a[i].G)-int(b[i].G)) + sq(int(a[i].B)-int(b[i].B))
	}
	return e
}

// splitClusters partitions the tile into two color clusters with a few rounds
// of 2-means seeded from the darkest and brightest texels.
func splitClusters(t *Tile) (c0, c1 [3]float64) {
	lo, hi := 0, 0
	for i := 1; i < 16; i++ {
		if luma(t[i].R, t[i].G, t[i].B) < luma(t[lo].R, t[lo].G, t[lo].B) {
			lo = i
		}
		if luma(t[i].R, t[i].G, t[i].B) > luma(t[hi].R, t[hi].G, t[hi].B) {
			hi = i
		}
	}
	c0 = [3]float64{float64(t[lo].R), float64(t[lo].G), float64(t[lo].B)}
	c1 = [3]float64{float64(t[hi].R), float64(t[hi].G), float64(t[hi].B)}

	for iter := 0; iter < 4; iter++ {
		var s0, s1 [3]float64
		var n0, n1 int
		for i := range t {
			p := [3]float64{float64(t[i].R), float64(t[i].G), float64(t[i].B)}
			if dist3(p, c0) <= dist3(p, c1) {
				s0[0], s0[1], s0[2] = s0[0]+p[0], s0[1]+p[1], s0[2]+p[2]
				n0++
			} else {
				s1[0], s1[1], s1[2] = s1[0]+p[0], s1[1]+p[1], s1[2]+p[2]
				n1++
			}
		}
		if n0 == 0 || n1 == 0 {
			break
		}
		for ch := 0; ch < 3; ch++ {
			c0[ch] = s0[ch] / float64(n0)
			c1[ch] = s1[ch] / float64(n1)
		}
	}
	return c0, c1
}

func dist3(a, b [3]float64) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

func quantize444(c [3]float64) [3]int {
	var q [3]int
	for ch := range c {
		q[ch] = clampInt(int(math.Round(c[ch]*15/255)), 0, 15)
	}
	return q
}

// fitPaint assigns every texel to the closest of four paint colors and
// returns the selector bits and the total squared error.
func fitPaint(t *Tile, paint *[4][3]int) (uint64, int) {
	var sels uint64
	total := 0
	for i := range t {
		c := t[i]
		bestJ, bestE := 0, -1
		for j := 0; j < 4; j++ {
			e := sq(paint[j][0]-int(c.R)) + sq(paint[j][1]-int(c.G)) + sq(paint[j][2]-int(c.B))
			if bestE < 0 || e < bestE {
				bestJ, bestE = j, e
			}
		}
		setSelector(&sels, etcTexel(i), bestJ)
		total += bestE
	}
	return sels, total
}

// encodeETCT encodes a T-mode block with q0 as the isolated color and q2 as
// the center of the three-color line.
func encodeETCT(t *Tile, q0, q2 [3]int) uint64 {
	bestDi, bestE := 0, -1
	var bestSels uint64
	for di := 0; di < 8; di++ {
		d := etcDistances[di]
		var paint [4][3]int
		for ch := 0; ch < 3; ch++ {
			c0, c2 := expand4(q0[ch]), expand4(q2[ch])
			paint[0][ch] = c0
			paint[1][ch] = clamp255(c2 + d)
			paint[2][ch] = c2
			paint[3][ch] = clamp255(c2 - d)
		}
		sels, e := fitPaint(t, &paint)
		if bestE < 0 || e < bestE {
			bestDi, bestE, bestSels = di, e, sels
		}
	}
	return packETCT(q0, q2, bestDi, bestSels)
}

func packETCT(q0, q2 [3]int, di int, sels uint64) uint64 {
	w := uint64(q0[0]>>2)<<59 | uint64(q0[0]&3)<<56 | uint64(q0[1])<<52 | uint64(q0[2])<<48 |
		uint64(q2[0])<<44 | uint64(q2[1])<<40 | uint64(q2[2])<<36 |
		uint64(di>>1)<<34 | uint64(di&1)<<32 | etcDiffBit | sels

	// Force the red differential sum out of range.
	if (q0[0]>>2)+(q0[0]&3) >= 4 {
		w |= 7 << 61
	} else {
		w |= 1 << 58
	}
	return w
}

// encodeETCH encodes an H-mode block. When both colors quantize to the same
// value only odd distance indices can be expressed.
func encodeETCH(t *Tile, q0, q2 [3]int) uint64 {
	equal := packRGB444(q0) == packRGB444(q2)
	bestDi, bestE := 1, -1
	var bestSels uint64
	for di := 0; di < 8; di++ {
		if equal && di&1 == 0 {
			continue
		}
		d := etcDistances[di]
		var paint [4][3]int
		for ch := 0; ch < 3; ch++ {
			c0, c2 := expand4(q0[ch]), expand4(q2[ch])
			paint[0][ch] = clamp255(c0 + d)
			paint[1][ch] = clamp255(c0 - d)
			paint[2][ch] = clamp255(c2 + d)
			paint[3][ch] = clamp255(c2 - d)
		}
		sels, e := fitPaint(t, &paint)
		if bestE < 0 || e < bestE {
			bestDi, bestE, bestSels = di, e, sels
		}
	}
	return packETCH(q0, q2, bestDi, bestSels)
}

func packETCH(q0, q2 [3]int, di int, sels uint64) uint64 {
	// The low distance bit is implied by the ordering of the two colors.
	if (packRGB444(q0) >= packRGB444(q2)) != (di&1 == 1) {
		q0, q2 = q2, q0
		sels ^= 0xFFFF << 16
	}

	w := uint64(q0[0])<<59 | uint64(q0[1]>>1)<<56 | uint64(q0[1]&1)<<52 |
		uint64(q0[2]>>3)<<51 | uint64(q0[2]&7)<<47 |
		uint64(q2[0])<<43 | uint64(q2[1])<<39 | uint64(q2[2])<<35 |
		uint64(di>>2)<<34 | uint64(di>>1&1)<<32 | etcDiffBit | sels

	// Keep red in range, force the green differential sum out of range.
	w |= (w >> 58 & 1) << 63
	if int(w>>51&3)+int(w>>48&3) >= 4 {
		w |= 7 << 53
	} else {
		w |= 1 << 50
	}
	return w
}

// encodeETCPlanar fits the three planar corner colors per channel by least
// squares, then refines each quantized coefficient by one step.
func encodeETCPlanar(t *Tile) uint64 {
	var o, h, v [3]int
	for ch := 0; ch < 3; ch++ {
		bits := 6
		if ch == 1 {
			bits = 7
		}
		o[ch], h[ch], v[ch] = fitPlanarChannel(t, ch, bits)
	}
	return packETCPlanar(o, h, v)
}

func fitPlanarChannel(t *Tile, ch, bits int) (o, h, v int) {
	var vals [16]int
	sum, sx, sy := 0, 0, 0
	for i := range t {
		val := channel(t[i], ch)
		vals[i] = val
		x, y := i&3, i>>2
		sum += val
		sx += (2*x - 3) * val
		sy += (2*y - 3) * val
	}
	// Sum of (x-1.5)^2 over the tile is 20.
	b := float64(sx) / 40
	c := float64(sy) / 40
	a := float64(sum)/16 - 1.5*b - 1.5*c

	maxq := 1<<bits - 1
	expand := expand6
	if bits == 7 {
		expand = expand7
	}
	quant := func(f float64) int {
		return clampInt(int(math.Round(f*float64(maxq)/255)), 0, maxq)
	}
	qo, qh, qv := quant(a), quant(a+4*b), quant(a+4*c)

	bestErr := -1
	for do := -1; do <= 1; do++ {
		for dh := -1; dh <= 1; dh++ {
			for dv := -1; dv <= 1; dv++ {
				co, ch2, cv := qo+do, qh+dh, qv+dv
				if co < 0 || co > maxq || ch2 < 0 || ch2 > maxq || cv < 0 || cv > maxq {
					continue
				}
				eo, eh, ev := expand(co), expand(ch2), expand(cv)
				e := 0
				for i := 0; i < 16; i++ {
					x, y := i&3, i>>2
					p := clamp255((x*(eh-eo) + y*(ev-eo) + 4*eo + 2) >> 2)
					e += sq(p - vals[i])
				}
				if bestErr < 0 || e < bestErr {
					bestErr, o, h, v = e, co, ch2, cv
				}
			}
		}
	}
	return o, h, v
}

func packETCPlanar(o, h, v [3]int) uint64 {
	w := uint64(o[0])<<57 |
		uint64(o[1]>>6)<<56 | uint64(o[1]&63)<<49 |
		uint64(o[2]>>5)<<48 | uint64(o[2]>>3&3)<<43 | uint64(o[2]&7)<<39 |
		uint64(h[0]>>1)<<34 | uint64(h[0]&1)<<32 |
		uint64(h[1])<<25 | uint64(h[2])<<19 |
		uint64(v[0])<<13 | uint64(v[1])<<6 | uint64(v[2]) |
		etcDiffBit

	// Keep red and green in range, force the blue differential sum out of range.
	w |= (w >> 58 & 1) << 63
	w |= (w >> 50 & 1) << 55
	if int(w>>43&3)+int(w>>40&3) >= 4 {
		w |= 7 << 45
	} else {
		w |= 1 << 42
	}
	return w
}
