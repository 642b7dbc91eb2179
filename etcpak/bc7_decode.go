package etcpak

import (
	"image/color"
	"math/bits"
)

func bc7WeightTable(n uint) []uint32 {
	switch n {
	case 2:
		return bc7Weights2
	case 3:
		return bc7Weights3
	}
	return bc7Weights4
}

func bc7Interp(lo, hi uint8, w uint32) uint8 {
	return uint8((uint32(lo)*(64-w) + uint32(hi)*w + 32) >> 6)
}

// decodeBC7 decodes any of the eight BC7 modes. Reserved blocks (no mode bit
// in the first byte) decode to transparent black.
func decodeBC7(src []byte, t *Tile) {
	if src[0] == 0 {
		*t = Tile{}
		return
	}
	mode := bits.TrailingZeros8(src[0])
	r := newBitReader(src)
	r.get(uint(mode + 1))

	subsets := bc7NumSubsets[mode]
	partition := 0
	if pb := bc7PartitionBits[mode]; pb > 0 {
		partition = int(r.get(pb))
	}
	var rotation, idxSel uint32
	if bc7HasRotation[mode] {
		rotation = r.get(2)
	}
	if bc7HasIndexSelection[mode] {
		idxSel = r.get(1)
	}

	cprec, aprec := bc7ColorPrecision[mode], bc7AlphaPrecision[mode]
	comps := 3
	if aprec > 0 {
		comps = 4
	}

	// Endpoint 2*s is the low endpoint of subset s, 2*s+1 the high one.
	var raw [6][4]uint32
	for c := 0; c < comps; c++ {
		prec := cprec
		if c == 3 {
			prec = aprec
		}
		for e := 0; e < 2*subsets; e++ {
			raw[e][c] = r.get(prec)
		}
	}

	var pbits [6]uint32
	if bc7HasPBits[mode] {
		if bc7SharedPBits[mode] {
			for s := 0; s < subsets; s++ {
				p := r.get(1)
				pbits[2*s], pbits[2*s+1] = p, p
			}
		} else {
			for e := 0; e < 2*subsets; e++ {
				pbits[e] = r.get(1)
			}
		}
	}

	var ep [6]rgba8
	for e := 0; e < 2*subsets; e++ {
		for c := 0; c < 4; c++ {
			if c == 3 && comps == 3 {
				ep[e][c] = 255
				continue
			}
			prec := cprec
			if c == 3 {
				prec = aprec
			}
			v, n := raw[e][c], prec
			if bc7HasPBits[mode] {
				v = v<<1 | pbits[e]
				n++
			}
			v <<= 8 - n
			v |= v >> n
			ep[e][c] = uint8(v)
		}
	}

	var part [16]uint8
	anchor := [3]int{0, -1, -1}
	switch subsets {
	case 2:
		part = bc7Partition2[partition]
		anchor[1] = int(bc7AnchorSecondSubset[partition])
	case 3:
		part = bc7Partition3[partition]
		anchor[1] = int(bc7AnchorThirdSubset1[partition])
		anchor[2] = int(bc7AnchorThirdSubset2[partition])
	}

	cb, ab := bc7ColorIndexBits[mode], bc7AlphaIndexBits[mode]
	var idx, idx2 [16]uint32
	for i := 0; i < 16; i++ {
		n := cb
		if i == anchor[0] || i == anchor[1] || i == anchor[2] {
			n--
		}
		idx[i] = r.get(n)
	}
	separate := bc7SeparateAlpha(mode)
	if separate {
		for i := 0; i < 16; i++ {
			n := ab
			if i == 0 {
				n--
			}
			idx2[i] = r.get(n)
		}
	}

	colorIdx, alphaIdx := &idx, &idx
	colorW, alphaW := bc7WeightTable(cb), bc7WeightTable(cb)
	if separate {
		alphaIdx, alphaW = &idx2, bc7WeightTable(ab)
		if idxSel == 1 {
			colorIdx, alphaIdx = alphaIdx, colorIdx
			colorW, alphaW = alphaW, colorW
		}
	}

	for i := 0; i < 16; i++ {
		s := int(part[i])
		lo, hi := ep[2*s], ep[2*s+1]
		cw, aw := colorW[colorIdx[i]], alphaW[alphaIdx[i]]
		c := color.NRGBA{
			R: bc7Interp(lo[0], hi[0], cw),
			G: bc7Interp(lo[1], hi[1], cw),
			B: bc7Interp(lo[2], hi[2], cw),
			A: bc7Interp(lo[3], hi[3], aw),
		}
		switch rotation {
		case 1:
			c.R, c.A = c.A, c.R
		case 2:
			c.G, c.A = c.A, c.G
		case 3:
			c.B, c.A = c.A, c.B
		}
		t[i] = c
	}
}
