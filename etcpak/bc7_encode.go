package etcpak

import "math"

// BC7 encoding searches modes 6 and 1 for opaque blocks and modes 6, 5 and 7
// for blocks with alpha. Endpoints come from a principal-axis fit, optionally
// refined by least squares and selector perturbation, then quantized with the
// p-bit that minimizes the endpoint error.

const (
	bc7Mode1OptimalIndex = 2
	bc7Mode7OptimalIndex = 1
)

type rgba8 [4]uint8

func (c rgba8) vec() vec4 {
	return vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

type vec4 [4]float32

func (v vec4) add(o vec4) vec4 { return vec4{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]} }
func (v vec4) sub(o vec4) vec4 { return vec4{v[0] - o[0], v[1] - o[1], v[2] - o[2], v[3] - o[3]} }
func (v vec4) mul(s float32) vec4 {
	return vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}
func (v vec4) dot(o vec4) float32 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] + v[3]*o[3] }

func (v vec4) saturate() vec4 {
	for i := range v {
		v[i] = min(max(v[i], 0), 1)
	}
	return v
}

func (v vec4) normalize() vec4 {
	s := v.dot(v)
	if s == 0 {
		return v
	}
	return v.mul(1 / float32(math.Sqrt(float64(s))))
}

func abs32(x float32) float32 { return float32(math.Abs(float64(x))) }

type bc7EndpointErr struct {
	err    uint16
	lo, hi uint8
}

// bc7Tables holds the BC7 encoder tables derived at context init.
type bc7Tables struct {
	mode1Mid     [64][2]float32
	mode7Mid     [32][2]float32
	mode5Mid     [128]float32
	mode6Reduced [2048][2]uint8

	// Single-color tables: the endpoint pair whose fixed interpolant
	// reproduces each 8-bit value, per p-bit.
	mode1Opt [256][2]bc7EndpointErr
	mode7Opt [256][2][2]bc7EndpointErr // [value][high pbit][low pbit]

	// Least-squares weight terms per selector: w^2, w(1-w), (1-w)^2, w.
	w2x [4]vec4
	w3x [8]vec4
	w4x [16]vec4
}

func buildBC7Tables(t *bc7Tables) {
	for p := uint32(0); p < 2; p++ {
		for i := uint32(0); i < 32; i++ {
			if i == 31 {
				t.mode7Mid[i][p] = 1
				continue
			}
			vl := (i<<1 | p) << 2
			vl |= vl >> 6
			vh := ((i+1)<<1 | p) << 2
			vh |= vh >> 6
			t.mode7Mid[i][p] = (float32(vl)/255 + float32(vh)/255) / 2
		}
		for i := uint32(0); i < 64; i++ {
			if i == 63 {
				t.mode1Mid[i][p] = 1
				continue
			}
			vl := (i<<1 | p) << 1
			vl |= vl >> 7
			vh := ((i+1)<<1 | p) << 1
			vh |= vh >> 7
			t.mode1Mid[i][p] = (float32(vl)/255 + float32(vh)/255) / 2
		}
	}
	for i := uint32(0); i < 128; i++ {
		if i == 127 {
			t.mode5Mid[i] = 1
			continue
		}
		vl := i << 1
		vl |= vl >> 7
		vh := (i + 1) << 1
		vh |= vh >> 7
		t.mode5Mid[i] = (float32(vl)/255 + float32(vh)/255) / 2
	}

	for p := 0; p < 2; p++ {
		for i := 0; i < 2048; i++ {
			f := float32(i) / 2047
			bestErr := float32(1e9)
			best := 0
			for j := 0; j < 64; j++ {
				ik := (j*127 + 31) / 63
				k := float32(ik<<1+p) / 255
				if e := abs32(k - f); e < bestErr {
					bestErr, best = e, ik
				}
			}
			t.mode6Reduced[i][p] = uint8(best)
		}
	}

	w1 := bc7Weights3[bc7Mode1OptimalIndex]
	w7 := bc7Weights2[bc7Mode7OptimalIndex]
	for c := 0; c < 256; c++ {
		for lp := uint32(0); lp < 2; lp++ {
			best := bc7EndpointErr{err: math.MaxUint16}
			for l := uint32(0); l < 64; l++ {
				low := (l<<1 | lp) << 1
				low |= low >> 7
				for h := uint32(0); h < 64; h++ {
					high := (h<<1 | lp) << 1
					high |= high >> 7
					k := int((low*(64-w1) + high*w1 + 32) >> 6)
					if err := sq(k - c); err < int(best.err) {
						best = bc7EndpointErr{uint16(err), uint8(l), uint8(h)}
					}
				}
			}
			t.mode1Opt[c][lp] = best
		}

		for hp := uint32(0); hp < 2; hp++ {
			for lp := uint32(0); lp < 2; lp++ {
				best := bc7EndpointErr{err: math.MaxUint16}
				for l := uint32(0); l < 32; l++ {
					low := (l<<1 | lp) << 2
					low |= low >> 6
					for h := uint32(0); h < 32; h++ {
						high := (h<<1 | hp) << 2
						high |= high >> 6
						k := int((low*(64-w7) + high*w7 + 32) >> 6)
						if err := sq(k - c); err < int(best.err) {
							best = bc7EndpointErr{uint16(err), uint8(l), uint8(h)}
						}
					}
				}
				t.mode7Opt[c][hp][lp] = best
			}
		}
	}

	fill := func(dst []vec4, weights []uint32) {
		for i, w := range weights {
			f := float32(w) / 64
			dst[i] = vec4{f * f, (1 - f) * f, (1 - f) * (1 - f), f}
		}
	}
	fill(t.w2x[:], bc7Weights2)
	fill(t.w3x[:], bc7Weights3)
	fill(t.w4x[:], bc7Weights4)
}

type bc7CellParams struct {
	pixels      []rgba8
	weights     [4]uint32
	selWeights  []uint32
	selWeightsX []vec4
	compBits    uint32
	hasAlpha    bool
	hasPBits    bool
	sharedPBit  bool
	perceptual  bool
}

func (cp *bc7CellParams) setLayout(sel []uint32, selX []vec4, compBits uint32, hasPBits, shared bool) {
	cp.selWeights, cp.selWeightsX = sel, selX
	cp.compBits = compBits
	cp.hasPBits, cp.sharedPBit = hasPBits, shared
}

type bc7CellResults struct {
	low, high     rgba8
	pbits         [2]uint32
	bestErr       uint64
	selectors     []uint8
	selectorsTemp []uint8
}

// bc7Block is a fully decided BC7 block before anchor fix-up and packing.
type bc7Block struct {
	mode           int
	partition      int
	selectors      [16]uint8
	alphaSelectors [16]uint8
	low, high      [3]rgba8
	pbits          [3][2]uint32
	rotation       uint32
	indexSelector  uint32
}

type bc7Encoder struct {
	tab *bc7Tables
	p   *BC7Params
}

func (cp *bc7CellParams) scaleColor(c rgba8) rgba8 {
	n := cp.compBits
	if cp.hasPBits {
		n++
	}
	var out rgba8
	for i := range c {
		v := uint32(c[i]) << (8 - n)
		v |= v >> n
		out[i] = uint8(v)
	}
	return out
}

func colorDistRGB(e1, e2 rgba8, perceptual bool, w *[4]uint32) uint32 {
	var dr, dg, db int32
	if perceptual {
		l1 := int32(e1[0])*109 + int32(e1[1])*366 + int32(e1[2])*37
		cr1 := int32(e1[0])<<9 - l1
		cb1 := int32(e1[2])<<9 - l1
		l2 := int32(e2[0])*109 + int32(e2[1])*366 + int32(e2[2])*37
		cr2 := int32(e2[0])<<9 - l2
		cb2 := int32(e2[2])<<9 - l2
		dr = (l1 - l2) >> 8
		dg = (cr1 - cr2) >> 8
		db = (cb1 - cb2) >> 8
	} else {
		dr = int32(e1[0]) - int32(e2[0])
		dg = int32(e1[1]) - int32(e2[1])
		db = int32(e1[2]) - int32(e2[2])
	}
	return w[0]*uint32(dr*dr) + w[1]*uint32(dg*dg) + w[2]*uint32(db*db)
}

func colorDistRGBA(e1, e2 rgba8, perceptual bool, w *[4]uint32) uint32 {
	da := int32(e1[3]) - int32(e2[3])
	return colorDistRGB(e1, e2, perceptual, w) + w[3]*uint32(da*da)
}

func (e *bc7Encoder) packMode1OneColor(cp *bc7CellParams, res *bc7CellResults, r, g, b uint8, sels []uint8) uint64 {
	opt := &e.tab.mode1Opt
	bestErr := uint32(math.MaxUint32)
	bestP := 0
	for p := 0; p < 2; p++ {
		err := uint32(opt[r][p].err) + uint32(opt[g][p].err) + uint32(opt[b][p].err)
		if err < bestErr {
			bestErr, bestP = err, p
			if bestErr == 0 {
				break
			}
		}
	}

	er, eg, eb := opt[r][bestP], opt[g][bestP], opt[b][bestP]
	res.low = rgba8{er.lo, eg.lo, eb.lo, 0}
	res.high = rgba8{er.hi, eg.hi, eb.hi, 0}
	res.pbits = [2]uint32{uint32(bestP), 0}
	for i := range cp.pixels {
		sels[i] = bc7Mode1OptimalIndex
	}

	w := bc7Weights3[bc7Mode1OptimalIndex]
	var p rgba8
	for i := 0; i < 3; i++ {
		low := (uint32(res.low[i])<<1 | res.pbits[0]) << 1
		low |= low >> 7
		high := (uint32(res.high[i])<<1 | res.pbits[0]) << 1
		high |= high >> 7
		p[i] = uint8((low*(64-w) + high*w + 32) >> 6)
	}
	p[3] = 255

	var total uint64
	for _, c := range cp.pixels {
		total += uint64(colorDistRGB(p, c, cp.perceptual, &cp.weights))
	}
	res.bestErr = total
	return total
}

func (e *bc7Encoder) packMode7OneColor(cp *bc7CellParams, res *bc7CellResults, c rgba8, sels []uint8) uint64 {
	opt := &e.tab.mode7Opt
	bestErr := uint32(math.MaxUint32)
	bestP := uint32(0)
	for p := uint32(0); p < 4; p++ {
		hp, lp := p>>1, p&1
		var err uint32
		for ch := 0; ch < 4; ch++ {
			err += uint32(opt[c[ch]][hp][lp].err)
		}
		if err < bestErr {
			bestErr, bestP = err, p
			if bestErr == 0 {
				break
			}
		}
	}

	hp, lp := bestP>>1, bestP&1
	for ch := 0; ch < 4; ch++ {
		ep := opt[c[ch]][hp][lp]
		res.low[ch], res.high[ch] = ep.lo, ep.hi
	}
	res.pbits = [2]uint32{lp, hp}
	for i := range cp.pixels {
		sels[i] = bc7Mode7OptimalIndex
	}

	w := bc7Weights2[bc7Mode7OptimalIndex]
	var p rgba8
	for ch := 0; ch < 4; ch++ {
		low := uint32(res.low[ch])<<1 | res.pbits[0]
		high := uint32(res.high[ch])<<1 | res.pbits[1]
		low = low<<2 | low>>6
		high = high<<2 | high>>6
		p[ch] = uint8((low*(64-w) + high*w + 32) >> 6)
	}

	var total uint64
	for _, px := range cp.pixels {
		total += uint64(colorDistRGBA(p, px, cp.perceptual, &cp.weights))
	}
	res.bestErr = total
	return total
}

// evaluateSolution assigns selectors for the quantized endpoints and keeps
// the solution in res when it beats the best so far.
func (e *bc7Encoder) evaluateSolution(low, high rgba8, pbits [2]uint32, cp *bc7CellParams, res *bc7CellResults) uint64 {
	quant := [2]rgba8{low, high}
	if cp.hasPBits {
		minP, maxP := pbits[0], pbits[1]
		if cp.sharedPBit {
			maxP = minP
		}
		for i := 0; i < 4; i++ {
			quant[0][i] = uint8(uint32(low[i])<<1 | minP)
			quant[1][i] = uint8(uint32(high[i])<<1 | maxP)
		}
	}

	n := len(cp.selWeights)
	lo, hi := cp.scaleColor(quant[0]), cp.scaleColor(quant[1])
	var weighted [16]rgba8
	weighted[0], weighted[n-1] = lo, hi
	nc := 3
	if cp.hasAlpha {
		nc = 4
	}
	for i := 1; i < n-1; i++ {
		w := cp.selWeights[i]
		for j := 0; j < nc; j++ {
			weighted[i][j] = uint8((uint32(lo[j])*(64-w) + uint32(hi[j])*w + 32) >> 6)
		}
	}

	sels := res.selectorsTemp[:len(cp.pixels)]
	var total uint64
	if !cp.perceptual {
		lr, lg, lb := int32(lo[0]), int32(lo[1]), int32(lo[2])
		dr, dg, db := int32(hi[0])-lr, int32(hi[1])-lg, int32(hi[2])-lb
		if cp.hasAlpha {
			la := int32(lo[3])
			da := int32(hi[3]) - la
			f := float32(n) / (float32(dr*dr+dg*dg+db*db+da*da) + .00000125)
			for i, c := range cp.pixels {
				dot := (int32(c[0])-lr)*dr + (int32(c[1])-lg)*dg + (int32(c[2])-lb)*db + (int32(c[3])-la)*da
				sel := clampInt(int(float32(dot)*f+.5), 1, n-1)
				err0 := colorDistRGBA(weighted[sel-1], c, false, &cp.weights)
				err1 := colorDistRGBA(weighted[sel], c, false, &cp.weights)
				if err1 > err0 {
					err1 = err0
					sel--
				}
				total += uint64(err1)
				sels[i] = uint8(sel)
			}
		} else {
			f := float32(n) / (float32(dr*dr+dg*dg+db*db) + .00000125)
			for i, c := range cp.pixels {
				dot := (int32(c[0])-lr)*dr + (int32(c[1])-lg)*dg + (int32(c[2])-lb)*db
				sel := clampInt(int(float32(dot)*f+.5), 1, n-1)
				err0 := colorDistRGB(weighted[sel-1], c, false, &cp.weights)
				err1 := colorDistRGB(weighted[sel], c, false, &cp.weights)
				if err0 < err1 {
					err1 = err0
					sel--
				}
				total += uint64(err1)
				sels[i] = uint8(sel)
			}
		}
	} else {
		for i, c := range cp.pixels {
			bestErr := uint32(math.MaxUint32)
			best := 0
			for j := 0; j < n; j++ {
				var err uint32
				if cp.hasAlpha {
					err = colorDistRGBA(weighted[j], c, true, &cp.weights)
				} else {
					err = colorDistRGB(weighted[j], c, true, &cp.weights)
				}
				if err < bestErr {
					bestErr, best = err, j
				}
			}
			total += uint64(bestErr)
			sels[i] = uint8(best)
		}
	}

	if total < res.bestErr {
		res.bestErr = total
		res.low, res.high = low, high
		res.pbits = pbits
		copy(res.selectors, sels)
	}
	return total
}

// fixDegenerate separates endpoints that collapsed onto the same quantized
// value while the unquantized fit still had a spread.
func (e *bc7Encoder) fixDegenerate(mode int, minC, maxC *rgba8, xl, xh vec4, iscale uint32) {
	if mode != 1 && !(mode == 6 && e.p.QuantMode6Endpoints) {
		return
	}
	for i := 0; i < 3; i++ {
		if minC[i] != maxC[i] || xl[i] == xh[i] {
			continue
		}
		if uint32(minC[i]) > iscale>>1 {
			if minC[i] > 0 {
				minC[i]--
			} else if uint32(maxC[i]) < iscale {
				maxC[i]++
			}
		} else {
			if uint32(maxC[i]) < iscale {
				maxC[i]++
			} else if minC[i] > 0 {
				minC[i]--
			}
		}
	}
}

func (e *bc7Encoder) quantMode1(x float32, p int) uint8 {
	v := int(x * 63)
	if x > e.tab.mode1Mid[v][p] {
		v++
	}
	return uint8(clampInt(v*2+p, p, 126+p))
}

func (e *bc7Encoder) quantMode7(x float32, p int) uint8 {
	v := int(x * 31)
	if x > e.tab.mode7Mid[v][p] {
		v++
	}
	return uint8(clampInt(v*2+p, p, 62+p))
}

func quantPBit(x float32, iscalep, p int) uint8 {
	v := int((x*float32(iscalep)-float32(p))/2 + .5)
	return uint8(clampInt(v*2+p, p, iscalep-1+p))
}

// findOptimalSolution quantizes the endpoint pair (in [0,1] units) for the
// current mode and evaluates it when it differs from the best so far.
func (e *bc7Encoder) findOptimalSolution(mode int, xl, xh vec4, cp *bc7CellParams, res *bc7CellResults) uint64 {
	xl, xh = xl.saturate(), xh.saturate()

	if !cp.hasPBits {
		iscale := int(1)<<cp.compBits - 1
		var tmin, tmax rgba8
		for c := 0; c < 4; c++ {
			if cp.compBits == 7 {
				vl := int(xl[c] * 127)
				if xl[c] > e.tab.mode5Mid[vl] {
					vl++
				}
				vh := int(xh[c] * 127)
				if xh[c] > e.tab.mode5Mid[vh] {
					vh++
				}
				tmin[c], tmax[c] = uint8(clampInt(vl, 0, 127)), uint8(clampInt(vh, 0, 127))
			} else {
				tmin[c] = uint8(clamp255(int(xl[c]*float32(iscale) + .5)))
				tmax[c] = uint8(clamp255(int(xh[c]*float32(iscale) + .5)))
			}
		}
		e.fixDegenerate(mode, &tmin, &tmax, xl, xh, uint32(iscale))
		if res.bestErr == math.MaxUint64 || tmin != res.low || tmax != res.high {
			e.evaluateSolution(tmin, tmax, res.pbits, cp, res)
		}
		return res.bestErr
	}

	iscalep := int(1)<<(cp.compBits+1) - 1
	totalComps := 3
	if cp.hasAlpha {
		totalComps = 4
	}

	var bestPBits [2]uint32
	var bestMin, bestMax rgba8

	switch {
	case !cp.sharedPBit && cp.compBits == 7 && e.p.QuantMode6Endpoints:
		// Opaque blocks keep both p-bits set so alpha decodes to 255.
		lp := 0
		if !cp.hasAlpha {
			lp = 1
		}
		bestPBits = [2]uint32{uint32(lp), 1}
		for c := 0; c < 4; c++ {
			bestMin[c] = e.tab.mode6Reduced[int(xl[c]*2047+.5)][lp]
			bestMax[c] = e.tab.mode6Reduced[int(xh[c]*2047+.5)][1]
		}

	case !cp.sharedPBit:
		bestErr0, bestErr1 := float32(1e9), float32(1e9)
		p0 := 0
		if !cp.hasAlpha {
			p0 = 1
		}
		for p := p0; p < 2; p++ {
			var xc [2]rgba8
			for c := 0; c < 4; c++ {
				if cp.compBits == 5 {
					xc[0][c], xc[1][c] = e.quantMode7(xl[c], p), e.quantMode7(xh[c], p)
				} else {
					xc[0][c], xc[1][c] = quantPBit(xl[c], iscalep, p), quantPBit(xh[c], iscalep, p)
				}
			}
			s0, s1 := cp.scaleColor(xc[0]), cp.scaleColor(xc[1])
			var err0, err1 float32
			for i := 0; i < totalComps; i++ {
				d0 := float32(s0[i]) - xl[i]*255
				d1 := float32(s1[i]) - xh[i]*255
				err0 += d0 * d0
				err1 += d1 * d1
			}
			if p == 1 {
				err0 *= e.p.PBit1Weight
				err1 *= e.p.PBit1Weight
			}
			if err0 < bestErr0 {
				bestErr0 = err0
				bestPBits[0] = uint32(p)
				for j := range bestMin {
					bestMin[j] = xc[0][j] >> 1
				}
			}
			if err1 < bestErr1 {
				bestErr1 = err1
				bestPBits[1] = uint32(p)
				for j := range bestMax {
					bestMax[j] = xc[1][j] >> 1
				}
			}
		}

	case mode == 1 && e.p.BiasMode1PBits:
		var x float32
		for c := 0; c < 3; c++ {
			x = max(x, xl[c], xh[c])
		}
		p := 0
		if x > 253.0/255 {
			p = 1
		}
		bestPBits = [2]uint32{uint32(p), uint32(p)}
		for c := 0; c < 4; c++ {
			bestMin[c] = e.quantMode1(xl[c], p) >> 1
			bestMax[c] = e.quantMode1(xh[c], p) >> 1
		}

	default:
		bestErr := float32(1e9)
		for p := 0; p < 2; p++ {
			var xc [2]rgba8
			for c := 0; c < 4; c++ {
				if cp.compBits == 6 {
					xc[0][c], xc[1][c] = e.quantMode1(xl[c], p), e.quantMode1(xh[c], p)
				} else {
					xc[0][c], xc[1][c] = quantPBit(xl[c], iscalep, p), quantPBit(xh[c], iscalep, p)
				}
			}
			s0, s1 := cp.scaleColor(xc[0]), cp.scaleColor(xc[1])
			var err float32
			for i := 0; i < totalComps; i++ {
				d0 := float32(s0[i])/255 - xl[i]
				d1 := float32(s1[i])/255 - xh[i]
				err += d0*d0 + d1*d1
			}
			if p == 1 {
				err *= e.p.PBit1Weight
			}
			if err < bestErr {
				bestErr = err
				bestPBits = [2]uint32{uint32(p), uint32(p)}
				for j := range bestMin {
					bestMin[j] = xc[0][j] >> 1
					bestMax[j] = xc[1][j] >> 1
				}
			}
		}
	}

	e.fixDegenerate(mode, &bestMin, &bestMax, xl, xh, uint32(iscalep>>1))
	if res.bestErr == math.MaxUint64 || bestMin != res.low || bestMax != res.high || bestPBits != res.pbits {
		e.evaluateSolution(bestMin, bestMax, bestPBits, cp, res)
	}
	return res.bestErr
}

// bc7LeastSquares solves for the endpoints that best reproduce pixels under
// the given selectors, for channels [c0, c1). Other channels are 255.
func bc7LeastSquares(pixels []rgba8, sels []uint8, wx []vec4, c0, c1 int) (lo, hi vec4) {
	var z00, z10, z11 float32
	var q00, t vec4
	for i, px := range pixels {
		w := &wx[sels[i]]
		z00 += w[0]
		z10 += w[1]
		z11 += w[2]
		for c := c0; c < c1; c++ {
			q00[c] += w[3] * float32(px[c])
			t[c] += float32(px[c])
		}
	}
	z01 := z10
	det := z00*z11 - z01*z10
	if det != 0 {
		det = 1 / det
	}
	iz00, iz01, iz10, iz11 := z11*det, -z01*det, -z10*det, z00*det

	lo, hi = vec4{255, 255, 255, 255}, vec4{255, 255, 255, 255}
	for c := c0; c < c1; c++ {
		q10 := t[c] - q00[c]
		// q00 accumulates the weight of the high endpoint.
		hi[c] = iz00*q00[c] + iz01*q10
		lo[c] = iz10*q00[c] + iz11*q10
		if lo[c] < 0 || hi[c] > 255 {
			mn, mx := uint8(255), uint8(0)
			for _, px := range pixels {
				mn, mx = min(mn, px[c]), max(mx, px[c])
			}
			if mn == mx {
				lo[c], hi[c] = float32(mn), float32(mx)
			}
		}
	}
	return lo, hi
}

func sameRGB(px []rgba8) bool {
	for _, c := range px[1:] {
		if c[0] != px[0][0] || c[1] != px[0][1] || c[2] != px[0][2] {
			return false
		}
	}
	return true
}

func sameRGBA(px []rgba8) bool {
	for _, c := range px[1:] {
		if c != px[0] {
			return false
		}
	}
	return true
}

// colorCellCompression fits one subset for the given mode and returns its
// error. A zero return means the subset is encoded exactly.
func (e *bc7Encoder) colorCellCompression(mode int, cp *bc7CellParams, res *bc7CellResults) uint64 {
	res.bestErr = math.MaxUint64
	px := cp.pixels
	n := len(px)

	switch {
	case mode == 1 && sameRGB(px):
		return e.packMode1OneColor(cp, res, px[0][0], px[0][1], px[0][2], res.selectors)
	case mode == 7 && sameRGBA(px):
		return e.packMode7OneColor(cp, res, px[0], res.selectors)
	}

	var sum vec4
	for _, c := range px {
		sum = sum.add(c.vec())
	}
	meanScaled := sum.mul(1 / float32(n))
	mean := sum.mul(1 / (float32(n) * 255)).saturate()

	var axis vec4
	if cp.hasAlpha {
		// Incremental PCA.
		for i, c := range px {
			d := c.vec().sub(meanScaled)
			nv := axis
			if i == 0 {
				nv = d
			}
			nv = nv.normalize()
			for k := 0; k < 4; k++ {
				axis[k] += d.mul(d[k]).dot(nv)
			}
		}
		axis = axis.normalize()
	} else {
		var cov [6]float32
		for _, c := range px {
			r := float32(c[0]) - meanScaled[0]
			g := float32(c[1]) - meanScaled[1]
			b := float32(c[2]) - meanScaled[2]
			cov[0] += r * r
			cov[1] += r * g
			cov[2] += r * b
			cov[3] += g * g
			cov[4] += g * b
			cov[5] += b * b
		}
		vr, vg, vb := float32(.9), float32(1), float32(.7)
		for iter := 0; iter < 3; iter++ {
			r := vr*cov[0] + vg*cov[1] + vb*cov[2]
			g := vr*cov[1] + vg*cov[3] + vb*cov[4]
			b := vr*cov[2] + vg*cov[4] + vb*cov[5]
			if m := max(abs32(r), abs32(g), abs32(b)); m > 1e-10 {
				m = 1 / m
				r, g, b = r*m, g*m, b*m
			}
			vr, vg, vb = r, g, b
		}
		if l := vr*vr + vg*vg + vb*vb; l >= 1e-10 {
			l = 1 / float32(math.Sqrt(float64(l)))
			axis = vec4{vr * l, vg * l, vb * l, 0}
		}
	}

	if axis.dot(axis) < .5 {
		var a float32
		if cp.perceptual {
			if cp.hasAlpha {
				a = .715
			}
			axis = vec4{.213, .715, .072, a}
		} else {
			if cp.hasAlpha {
				a = 1
			}
			axis = vec4{1, 1, 1, a}
		}
		axis = axis.normalize()
	}

	l, h := float32(1e9), float32(-1e9)
	for _, c := range px {
		d := c.vec().sub(meanScaled).dot(axis)
		l, h = min(l, d), max(h, d)
	}
	l *= 1.0 / 255
	h *= 1.0 / 255

	minC := mean.add(axis.mul(l)).saturate()
	maxC := mean.add(axis.mul(h)).saturate()
	white := vec4{1, 1, 1, 1}
	if minC.dot(white) > maxC.dot(white) {
		minC, maxC = maxC, minC
	}

	if e.findOptimalSolution(mode, minC, maxC, cp, res) == 0 {
		return 0
	}

	refit := func(sels []uint8) bool {
		c1 := 3
		if cp.hasAlpha {
			c1 = 4
		}
		lo, hi := bc7LeastSquares(px, sels, cp.selWeightsX, 0, c1)
		return e.findOptimalSolution(mode, lo.mul(1.0/255), hi.mul(1.0/255), cp, res) != 0
	}

	if e.p.TryLeastSquares && !refit(res.selectors) {
		return 0
	}

	if e.p.UberLevel > 0 {
		var selBuf, trialBuf [16]uint8
		sels, trial := selBuf[:n], trialBuf[:n]
		copy(sels, res.selectors)
		maxSelector := len(cp.selWeights) - 1

		minSel, maxSel := uint8(16), uint8(0)
		for _, s := range sels {
			minSel, maxSel = min(minSel, s), max(maxSel, s)
		}

		for i, s := range sels {
			if s == minSel && int(s) < maxSelector {
				s++
			}
			trial[i] = s
		}
		if !refit(trial) {
			return 0
		}

		for i, s := range sels {
			if s == maxSel && s > 0 {
				s--
			}
			trial[i] = s
		}
		if !refit(trial) {
			return 0
		}

		for i, s := range sels {
			if s == minSel && int(s) < maxSelector {
				s++
			} else if s == maxSel && s > 0 {
				s--
			}
			trial[i] = s
		}
		if !refit(trial) {
			return 0
		}

		// Stretch the selectors to exploit endpoint extrapolation.
		if e.p.UberLevel >= 2 && res.bestErr > uint64(n*56>>4) {
			q := 1
			if e.p.UberLevel >= 4 {
				q = e.p.UberLevel - 2
			}
			for ly := -q; ly <= 1; ly++ {
				for hy := maxSelector - 1; hy <= maxSelector+q; hy++ {
					if ly == 0 && hy == maxSelector {
						continue
					}
					for i, s := range sels {
						v := float32(maxSelector) * (float32(s) - float32(ly)) / (float32(hy) - float32(ly))
						trial[i] = uint8(clampInt(int(math.Floor(float64(v+.5))), 0, maxSelector))
					}
					if !refit(trial) {
						return 0
					}
				}
			}
		}
	}

	if mode == 1 || mode == 7 {
		var avgColor rgba8
		for k := range avgColor {
			avgColor[k] = uint8(int(.5 + mean[k]*255))
		}
		avg := *res
		var avgErr uint64
		if mode == 1 {
			avgErr = e.packMode1OneColor(cp, &avg, avgColor[0], avgColor[1], avgColor[2], res.selectorsTemp)
		} else {
			avgErr = e.packMode7OneColor(cp, &avg, avgColor, res.selectorsTemp)
		}
		if avgErr < res.bestErr {
			*res = avg
			copy(res.selectors, res.selectorsTemp[:n])
		}
	}
	return res.bestErr
}

// bc7EstimateSubset is a cheap error estimate for one subset, with endpoints
// at the bounding box corners. Mode 7 (alpha) uses 4 levels over RGBA, mode 1
// uses 8 levels over RGB.
func bc7EstimateSubset(px []rgba8, alpha, perceptual bool, w *[4]uint32, bestSoFar uint64) uint64 {
	weights, nc := bc7Weights3, 3
	if alpha {
		weights, nc = bc7Weights2, 4
	}
	n := len(weights)

	lo, hi := rgba8{255, 255, 255, 255}, rgba8{}
	for _, c := range px {
		for k := 0; k < nc; k++ {
			lo[k], hi[k] = min(lo[k], c[k]), max(hi[k], c[k])
		}
	}
	if !alpha {
		lo[3], hi[3] = 0, 0
	}

	var wc [8]rgba8
	wc[0], wc[n-1] = lo, hi
	for i := 1; i < n-1; i++ {
		for k := 0; k < nc; k++ {
			wc[i][k] = uint8((uint32(lo[k])*(64-weights[i]) + uint32(hi[k])*weights[i] + 32) >> 6)
		}
	}

	var a [4]int
	for k := 0; k < nc; k++ {
		a[k] = int(hi[k]) - int(lo[k])
	}
	var dots [8]int
	for i := 0; i < n; i++ {
		for k := 0; k < nc; k++ {
			dots[i] += int(wc[i][k]) * a[k]
		}
	}
	var thresh [7]int
	for i := 0; i < n-1; i++ {
		thresh[i] = (dots[i] + dots[i+1] + 1) >> 1
	}

	var l1, cr1, cb1 [8]int
	if perceptual {
		for j := 0; j < n; j++ {
			l1[j] = int(wc[j][0])*109 + int(wc[j][1])*366 + int(wc[j][2])*37
			cr1[j] = int(wc[j][0])<<9 - l1[j]
			cb1[j] = int(wc[j][2])<<9 - l1[j]
		}
	}

	var total uint64
	for _, c := range px {
		d := 0
		for k := 0; k < nc; k++ {
			d += a[k] * int(c[k])
		}
		s := 0
		for j := n - 2; j >= 0; j-- {
			if d >= thresh[j] {
				s = j + 1
				break
			}
		}

		var d0, d1, d2 int
		if perceptual {
			l2 := int(c[0])*109 + int(c[1])*366 + int(c[2])*37
			d0 = (l1[s] - l2) >> 8
			d1 = (cr1[s] - (int(c[0])<<9 - l2)) >> 8
			d2 = (cb1[s] - (int(c[2])<<9 - l2)) >> 8
		} else {
			d0 = int(wc[s][0]) - int(c[0])
			d1 = int(wc[s][1]) - int(c[1])
			d2 = int(wc[s][2]) - int(c[2])
		}
		err := uint64(w[0])*uint64(d0*d0) + uint64(w[1])*uint64(d1*d1) + uint64(w[2])*uint64(d2*d2)
		if alpha {
			da := int(wc[s][3]) - int(c[3])
			err += uint64(w[3]) * uint64(da*da)
		}
		total += err
		if total > bestSoFar {
			break
		}
	}
	return total
}

// estimatePartition picks the two-subset partition for modes 1 and 7 by
// estimated error, scanning partitions in order of typical usefulness.
func (e *bc7Encoder) estimatePartition(px *[16]rgba8, w *[4]uint32, mode int) int {
	total := min(e.p.MaxPartitions, 64)
	if total <= 1 {
		return 0
	}

	best := uint64(math.MaxUint64)
	bestPart, bestKey := 0, 0
	for iter := 0; iter < total && best > 0; iter++ {
		part := int(bc7PartitionOrder[iter])

		if e.p.PartitionFilterbank && iter >= 14 && iter <= 34 {
			if bc7PartitionPredictors[part]&(uint32(1)<<(bestKey+1)) == 0 {
				if iter == 34 {
					break
				}
				continue
			}
		}

		var sub [2][16]rgba8
		var cnt [2]int
		for i, s := range bc7Partition2[part] {
			sub[s][cnt[s]] = px[i]
			cnt[s]++
		}

		var err uint64
		for s := 0; s < 2 && err < best; s++ {
			err += bc7EstimateSubset(sub[s][:cnt[s]], mode == 7, e.p.Perceptual, w, best)
		}
		if err < best {
			best, bestPart = err, part
		}

		// The checkerboard ranks last among the likely partitions.
		if part == 34 && bestPart != 34 {
			break
		}
		if iter == 13 {
			bestKey = bestPart
		}
	}
	return bestPart
}

// compressPartitioned fits both subsets of a two-subset mode and fills b
// when the weighted error beats best.
func (e *bc7Encoder) compressPartitioned(mode, partition int, px *[16]rgba8, cp *bc7CellParams, best uint64, weight float32, b *bc7Block) uint64 {
	var sub [2][16]rgba8
	var subIdx, subSels [2][16]uint8
	var cnt [2]int
	for i, s := range bc7Partition2[partition] {
		sub[s][cnt[s]] = px[i]
		subIdx[s][cnt[s]] = uint8(i)
		cnt[s]++
	}

	var temp [16]uint8
	var results [2]bc7CellResults
	var trial uint64
	for s := 0; s < 2; s++ {
		cp.pixels = sub[s][:cnt[s]]
		results[s] = bc7CellResults{selectors: subSels[s][:cnt[s]], selectorsTemp: temp[:]}
		trial += e.colorCellCompression(mode, cp, &results[s])
		if uint64(float32(trial)*weight+.5) > best {
			break
		}
	}

	scaled := uint64(float32(trial)*weight + .5)
	if scaled < best {
		b.mode, b.partition = mode, partition
		for s := 0; s < 2; s++ {
			for i := 0; i < cnt[s]; i++ {
				b.selectors[subIdx[s][i]] = subSels[s][i]
			}
			b.low[s], b.high[s] = results[s].low, results[s].high
			b.pbits[s] = results[s].pbits
		}
	}
	return scaled
}

func (e *bc7Encoder) handleMode5(px *[16]rgba8, cp *bc7CellParams, loA, hiA int, b *bc7Block) uint64 {
	cp.setLayout(bc7Weights2, e.tab.w2x[:], 7, false, false)
	cp.hasAlpha = false
	cp.pixels = px[:]

	var temp [16]uint8
	res := bc7CellResults{selectors: b.selectors[:], selectorsTemp: temp[:]}
	err := e.colorCellCompression(5, cp, &res)
	b.mode = 5
	b.low[0], b.high[0] = res.low, res.high

	if loA == hiA {
		b.low[0][3], b.high[0][3] = uint8(loA), uint8(hiA)
		b.alphaSelectors = [16]uint8{}
		return err
	}

	alphaErr := uint64(math.MaxUint64)
	passes := 2
	if e.p.UberLevel >= 1 {
		passes = 3
	}
	for pass := 0; pass < passes; pass++ {
		vals := [4]int{loA, (loA*43 + hiA*21 + 32) >> 6, (loA*21 + hiA*43 + 32) >> 6, hiA}
		var trial [16]uint8
		var trialErr uint64
		for i, c := range px {
			a := int(c[3])
			s, be := 0, abs(a-vals[0])
			for j := 1; j < 4; j++ {
				if d := abs(a - vals[j]); d < be {
					s, be = j, d
				}
			}
			trial[i] = uint8(s)
			trialErr += uint64(uint32(be*be) * cp.weights[3])
		}
		if trialErr < alphaErr {
			alphaErr = trialErr
			b.low[0][3], b.high[0][3] = uint8(loA), uint8(hiA)
			b.alphaSelectors = trial
		}

		if pass != passes-1 {
			lo, hi := bc7LeastSquares(px[:], trial[:], e.tab.w2x[:], 3, 4)
			nlo := clampInt(int(math.Floor(float64(lo[3])+.5)), 0, 255)
			nhi := clampInt(int(math.Floor(float64(hi[3])+.5)), 0, 255)
			if nlo > nhi {
				nlo, nhi = nhi, nlo
			}
			if nlo == loA && nhi == hiA {
				break
			}
			loA, hiA = nlo, nhi
		}
	}
	return err + alphaErr
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (e *bc7Encoder) handleAlphaBlock(px *[16]rgba8, cp *bc7CellParams, out *bc7Block) {
	var temp [16]uint8
	best := uint64(math.MaxUint64)

	if e.p.ModeMask&(1<<6) != 0 {
		cp.setLayout(bc7Weights4, e.tab.w4x[:], 7, true, false)
		cp.hasAlpha = true
		cp.pixels = px[:]
		var b6 bc7Block
		res := bc7CellResults{selectors: b6.selectors[:], selectorsTemp: temp[:]}
		err := e.colorCellCompression(6, cp, &res)
		best = uint64(float32(err)*e.p.Mode6ErrorWeight + .5)
		b6.mode = 6
		b6.low[0], b6.high[0], b6.pbits[0] = res.low, res.high, res.pbits
		*out = b6
	}

	if best > 0 && e.p.ModeMask&(1<<5) != 0 {
		loA, hiA := 255, 0
		for _, c := range px {
			loA, hiA = min(loA, int(c[3])), max(hiA, int(c[3]))
		}
		var b5 bc7Block
		err := e.handleMode5(px, cp, loA, hiA, &b5)
		if err = uint64(float32(err)*e.p.Mode5ErrorWeight + .5); err < best {
			best = err
			*out = b5
		}
	}

	if best > 0 && e.p.ModeMask&(1<<7) != 0 {
		part := e.estimatePartition(px, &cp.weights, 7)
		cp.setLayout(bc7Weights2, e.tab.w2x[:], 5, true, false)
		cp.hasAlpha = true
		var b7 bc7Block
		if err := e.compressPartitioned(7, part, px, cp, best, e.p.Mode7ErrorWeight, &b7); err < best {
			*out = b7
		}
	}
}

func (e *bc7Encoder) handleOpaqueBlock(px *[16]rgba8, cp *bc7CellParams, out *bc7Block) {
	var temp [16]uint8
	best := uint64(math.MaxUint64)
	cp.hasAlpha = false

	if e.p.ModeMask&(1<<6) != 0 {
		cp.setLayout(bc7Weights4, e.tab.w4x[:], 7, true, false)
		cp.pixels = px[:]
		res := bc7CellResults{selectors: out.selectors[:], selectorsTemp: temp[:]}
		err := e.colorCellCompression(6, cp, &res)
		best = uint64(float32(err)*e.p.Mode6ErrorWeight + .5)
		out.mode = 6
		out.low[0], out.high[0], out.pbits[0] = res.low, res.high, res.pbits
	}

	if best > 0 && e.p.MaxPartitions > 0 && e.p.ModeMask&(1<<1) != 0 {
		part := e.estimatePartition(px, &cp.weights, 1)
		cp.setLayout(bc7Weights3, e.tab.w3x[:], 6, true, true)
		var b1 bc7Block
		if err := e.compressPartitioned(1, part, px, cp, best, e.p.Mode1ErrorWeight, &b1); err < best {
			*out = b1
		}
	}
}

// perceptualWeights scales the user weights into the luma/chroma space used
// by the perceptual distance (BT.709 chroma scale factors).
func perceptualWeights(w [4]uint32) [4]uint32 {
	const (
		pr = (.5 / (1 - .2126)) * (.5 / (1 - .2126))
		pb = (.5 / (1 - .0722)) * (.5 / (1 - .0722))
	)
	return [4]uint32{
		uint32(float32(w[0]) * 4),
		uint32(float32(w[1]) * 4 * pr),
		uint32(float32(w[2]) * 4 * pb),
		w[3] * 4,
	}
}

// encodeBC7 encodes one tile into a 16-byte BC7 block.
func encodeBC7(ctx *CodecContext, t *Tile, p *BC7Params, dst []byte) {
	e := bc7Encoder{tab: &ctx.bc7, p: p}

	var px [16]rgba8
	alpha := p.ForceAlpha
	for i, c := range t {
		px[i] = rgba8{c.R, c.G, c.B, c.A}
		if c.A < 255 {
			alpha = true
		}
	}

	cp := bc7CellParams{perceptual: p.Perceptual, weights: p.Weights}
	if p.Perceptual {
		cp.weights = perceptualWeights(p.Weights)
	}

	var blk bc7Block
	if alpha {
		e.handleAlphaBlock(&px, &cp, &blk)
	} else {
		e.handleOpaqueBlock(&px, &cp, &blk)
	}
	packBC7Block(&blk, dst)
}

func bc7SeparateAlpha(mode int) bool { return mode == 4 || mode == 5 }

// packBC7Block writes b as a 128-bit BC7 block. Subsets whose anchor index
// has its top bit set are inverted first so anchors can drop that bit.
func packBC7Block(b *bc7Block, dst []byte) {
	mode := b.mode
	subsets := bc7NumSubsets[mode]

	var part [16]uint8
	switch subsets {
	case 2:
		part = bc7Partition2[b.partition]
	case 3:
		part = bc7Partition3[b.partition]
	}

	sels, asels := b.selectors, b.alphaSelectors
	low, high, pbits := b.low, b.high, b.pbits
	colorBits := bc7ColorIndexBits[mode]
	alphaBits := bc7AlphaIndexBits[mode]
	separate := bc7SeparateAlpha(mode)

	anchor := [3]int{-1, -1, -1}
	for k := 0; k < subsets; k++ {
		a := 0
		switch {
		case k == 0:
		case subsets == 3 && k == 1:
			a = int(bc7AnchorThirdSubset1[b.partition])
		case subsets == 3 && k == 2:
			a = int(bc7AnchorThirdSubset2[b.partition])
		default:
			a = int(bc7AnchorSecondSubset[b.partition])
		}
		anchor[k] = a

		num := uint8(1) << colorBits
		if sels[a]&(num>>1) != 0 {
			for i := range sels {
				if int(part[i]) == k {
					sels[i] = num - 1 - sels[i]
				}
			}
			if separate {
				for q := 0; q < 3; q++ {
					low[k][q], high[k][q] = high[k][q], low[k][q]
				}
			} else {
				low[k], high[k] = high[k], low[k]
			}
			if !bc7SharedPBits[mode] {
				pbits[k][0], pbits[k][1] = pbits[k][1], pbits[k][0]
			}
		}

		if separate {
			num := uint8(1) << alphaBits
			if asels[a]&(num>>1) != 0 {
				for i := range asels {
					if int(part[i]) == k {
						asels[i] = num - 1 - asels[i]
					}
				}
				low[k][3], high[k][3] = high[k][3], low[k][3]
			}
		}
	}
	isAnchor := func(i int) bool { return i == anchor[0] || i == anchor[1] || i == anchor[2] }

	var w bitWriter
	w.setBits(1<<mode, uint(mode+1))
	if bc7HasRotation[mode] {
		w.setBits(b.rotation, 2)
	}
	if bc7HasIndexSelection[mode] {
		w.setBits(b.indexSelector, 1)
	}
	if pb := bc7PartitionBits[mode]; pb > 0 {
		w.setBits(uint32(b.partition), pb)
	}

	comps := 3
	if mode >= 4 {
		comps = 4
	}
	for c := 0; c < comps; c++ {
		prec := bc7ColorPrecision[mode]
		if c == 3 {
			prec = bc7AlphaPrecision[mode]
		}
		for s := 0; s < subsets; s++ {
			w.setBits(uint32(low[s][c]), prec)
			w.setBits(uint32(high[s][c]), prec)
		}
	}

	if bc7HasPBits[mode] {
		for s := 0; s < subsets; s++ {
			w.setBits(pbits[s][0], 1)
			if !bc7SharedPBits[mode] {
				w.setBits(pbits[s][1], 1)
			}
		}
	}

	for i := 0; i < 16; i++ {
		n := colorBits
		if isAnchor(i) {
			n--
		}
		w.setBits(uint32(sels[i]), n)
	}
	if separate {
		for i := 0; i < 16; i++ {
			n := alphaBits
			if isAnchor(i) {
				n--
			}
			w.setBits(uint32(asels[i]), n)
		}
	}

	if w.pos != 128 {
		panic("etcpak: BC7 block is not 128 bits")
	}
	copy(dst, w.buf[:])
}
