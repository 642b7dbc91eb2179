package etcpak

// encodeEAC encodes 16 8-bit values (row-major) as an EAC word. The result
// decodes exactly the same way as ETC2 alpha and as R11 truncated to 8 bits.
func encodeEAC(vals *[16]uint8) uint64 {
	lo, hi := int(vals[0]), int(vals[0])
	for _, v := range vals[1:] {
		lo = min(lo, int(v))
		hi = max(hi, int(v))
	}
	if lo == hi {
		// Table 13 holds a zero modifier at index 4.
		w := uint64(lo)<<56 | 1<<52 | 13<<48
		for p := 0; p < 16; p++ {
			w |= 4 << (3 * (15 - p))
		}
		return w
	}

	var best struct {
		base, mul, tbl int
		err            int
	}
	best.err = -1
	for t := 0; t < 16; t++ {
		mods := &eacModifiers[t]
		span := mods[7] - mods[3]
		mul0 := clampInt((hi-lo+span/2)/span, 1, 15)
		for mul := max(1, mul0-1); mul <= min(15, mul0+1); mul++ {
			center := (lo + hi + 1) / 2
			base0 := center - (mods[7]+mods[3])*mul/2
			for base := base0 - 1; base <= base0+1; base++ {
				if base < 0 || base > 255 {
					continue
				}
				e := 0
				for _, v := range vals {
					e += eacNearest(mods, base, mul, int(v))
					if best.err >= 0 && e >= best.err {
						break
					}
				}
				if best.err < 0 || e < best.err {
					best.base, best.mul, best.tbl, best.err = base, mul, t, e
				}
			}
		}
		if best.err == 0 {
			break
		}
	}

	mods := &eacModifiers[best.tbl]
	w := uint64(best.base)<<56 | uint64(best.mul)<<52 | uint64(best.tbl)<<48
	for i, v := range vals {
		bestJ, bestE := 0, -1
		for j := 0; j < 8; j++ {
			e := sq(clamp255(best.base+mods[j]*best.mul) - int(v))
			if bestE < 0 || e < bestE {
				bestJ, bestE = j, e
			}
		}
		w |= uint64(bestJ) << (3 * (15 - etcTexel(i)))
	}
	return w
}

func eacNearest(mods *[8]int, base, mul, v int) int {
	bestE := -1
	for j := 0; j < 8; j++ {
		e := sq(clamp255(base+mods[j]*mul) - v)
		if bestE < 0 || e < bestE {
			bestE = e
		}
	}
	return bestE
}

func tileAlpha(t *Tile, out *[16]uint8) {
	for i := range t {
		out[i] = t[i].A
	}
}

func tileRed(t *Tile, out *[16]uint8) {
	for i := range t {
		out[i] = t[i].R
	}
}

func tileGreen(t *Tile, out *[16]uint8) {
	for i := range t {
		out[i] = t[i].G
	}
}
