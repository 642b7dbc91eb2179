package etcpak

// ditherOffset biases dither lookups so small negative sums stay in range.
const ditherOffset = 8

func buildDitherTables(rb, g *[256 + 2*ditherOffset]uint8) {
	for i := range rb {
		v := clamp255(i - ditherOffset)
		rb[i] = uint8(expand5(mul8bit(v, 31)))
		g[i] = uint8(expand6(mul8bit(v, 63)))
	}
}

// ditherTile diffuses the RGB565 quantization error across the tile, row by
// row, with 7/16 to the right and 3/5/1 sixteenths to the row below.
func ditherTile(ctx *CodecContext, t *Tile) {
	for ch := 0; ch < 3; ch++ {
		q := &ctx.ditherRB
		if ch == 1 {
			q = &ctx.ditherG
		}
		lookup := func(v int) int {
			return int(q[clampInt(v+ditherOffset, 0, len(q)-1)])
		}

		var errs [8]int
		ep1, ep2 := errs[0:4], errs[4:8]
		for y := 0; y < 4; y++ {
			var p [4]int
			for x := 0; x < 4; x++ {
				p[x] = channel(t[y*4+x], ch)
			}

			tmp := lookup(p[0] + (3*ep2[1]+5*ep2[0])>>4)
			ep1[0] = p[0] - tmp
			p[0] = tmp
			tmp = lookup(p[1] + (7*ep1[0]+3*ep2[2]+5*ep2[1]+ep2[0])>>4)
			ep1[1] = p[1] - tmp
			p[1] = tmp
			tmp = lookup(p[2] + (7*ep1[1]+3*ep2[3]+5*ep2[2]+ep2[1])>>4)
			ep1[2] = p[2] - tmp
			p[2] = tmp
			tmp = lookup(p[3] + (7*ep1[2]+5*ep2[3]+ep2[2])>>4)
			ep1[3] = p[3] - tmp
			p[3] = tmp

			for x := 0; x < 4; x++ {
				setChannel(&t[y*4+x], ch, p[x])
			}
			ep1, ep2 = ep2, ep1
		}
	}
}
