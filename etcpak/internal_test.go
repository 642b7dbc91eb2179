package etcpak

import (
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecContext_ConcurrentInit(t *testing.T) {
	var c CodecContext
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Init()
		}()
	}
	wg.Wait()

	ref := NewCodecContext()
	require.True(t, c.Ready())
	require.True(t, c.bc7 == ref.bc7, "bc7 tables differ")
	require.True(t, c.etcSolid == ref.etcSolid, "etc solid tables differ")
	require.Equal(t, ref.bc1Match5, c.bc1Match5)
	require.Equal(t, ref.bc1Match6, c.bc1Match6)
	require.Equal(t, ref.ditherRB, c.ditherRB)
	require.Equal(t, ref.ditherG, c.ditherG)
	require.Same(t, DefaultContext(), DefaultContext())
}

func TestBC7Tables_SingleColorOptimum(t *testing.T) {
	tab := &DefaultContext().bc7
	w1 := bc7Weights3[bc7Mode1OptimalIndex]
	for c := 0; c < 256; c++ {
		for p := uint32(0); p < 2; p++ {
			e := tab.mode1Opt[c][p]
			lo := uint32(e.lo)<<2 | p<<1
			lo |= lo >> 7
			hi := uint32(e.hi)<<2 | p<<1
			hi |= hi >> 7
			got := int(bc7Interp(uint8(lo), uint8(hi), w1))
			require.Equal(t, int(e.err), sq(got-c), "value %d pbit %d", c, p)
		}
		require.LessOrEqual(t, min(tab.mode1Opt[c][0].err, tab.mode1Opt[c][1].err), uint16(4))
	}
}

func TestBitWriterReader(t *testing.T) {
	var w bitWriter
	fields := []struct {
		v uint32
		n uint
	}{{1, 1}, {5, 3}, {0x7F, 7}, {0, 2}, {0x3FF, 10}, {0x12345, 17}, {3, 2}}
	total := uint(0)
	for _, f := range fields {
		w.setBits(f.v, f.n)
		total += f.n
	}
	w.setBits(0, 128-total)
	require.Equal(t, uint(128), w.pos)

	r := newBitReader(w.buf[:])
	for _, f := range fields {
		require.Equal(t, f.v, r.get(f.n))
	}
	require.Panics(t, func() { w.setBits(1, 1) })
}

// A mode 6 block whose anchor selector has its top bit set must be inverted
// on output and still decode to the same texels.
func TestPackBC7_AnchorInversion(t *testing.T) {
	b := bc7Block{mode: 6}
	b.low[0] = rgba8{0, 0, 0, 0}
	b.high[0] = rgba8{127, 127, 127, 127}
	b.pbits[0] = [2]uint32{0, 1}
	for i := range b.selectors {
		b.selectors[i] = uint8(15 - i)
	}

	var block [16]byte
	packBC7Block(&b, block[:])

	// Texel 0's index sits right after the 7-bit mode, 56 endpoint bits and
	// 2 p-bits; its stored value is the inverted selector 0.
	r := newBitReader(block[:])
	r.get(7 + 56 + 2)
	require.Equal(t, uint32(0), r.get(3))

	var out Tile
	decodeBC7(block[:], &out)
	for i := range out {
		v := bc7Interp(0, 255, bc7Weights4[15-i])
		require.Equal(t, color.NRGBA{v, v, v, v}, out[i], "texel %d", i)
	}
}

func TestPackBC7_PartitionedAnchors(t *testing.T) {
	// Mode 1, every selector at its top value, so every subset anchor needs
	// inverting.
	for _, part := range []int{0, 13, 63} {
		b := bc7Block{mode: 1, partition: part}
		b.low[0], b.high[0] = rgba8{10, 20, 30, 0}, rgba8{50, 40, 30, 0}
		b.low[1], b.high[1] = rgba8{63, 0, 5, 0}, rgba8{0, 63, 60, 0}
		for i := range b.selectors {
			b.selectors[i] = 7
		}
		var block [16]byte
		packBC7Block(&b, block[:])

		var out Tile
		decodeBC7(block[:], &out)
		for i := range out {
			s := bc7Partition2[part][i]
			// Selector 7 is the high endpoint itself.
			hi := b.high[s]
			want := color.NRGBA{expand6pb(hi[0]), expand6pb(hi[1]), expand6pb(hi[2]), 255}
			require.Equal(t, want, out[i], "partition %d texel %d", part, i)
		}
	}
}

// expand6pb expands a mode 1 endpoint with a zero shared p-bit.
func expand6pb(v uint8) uint8 {
	x := uint32(v) << 2
	return uint8(x | x>>7)
}

func TestHalfAverages_KernelMatchesScalar(t *testing.T) {
	var tile Tile
	for i := range tile {
		tile[i] = color.NRGBA{uint8(i * 17), uint8(255 - i*13), uint8(i * i), 255}
	}
	require.Equal(t, halfAveragesScalar(&tile), halfAveragesRGB(&tile))
	require.NotEmpty(t, Kernel())
}

func TestETCTexelOrder(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 16; i++ {
		p := etcTexel(i)
		require.False(t, seen[p])
		seen[p] = true
		require.Equal(t, (i&3)*4+i/4, p)
	}
}

// etcMode names the ETC2 mode a block decodes in.
func etcMode(w uint64) string {
	if w&etcDiffBit == 0 {
		return "individual"
	}
	for ch, name := range []string{"T", "H", "planar"} {
		b := int(w >> (59 - 8*ch) & 31)
		d := etcDiffDeltas[w>>(56-8*ch)&7]
		if b+d < 0 || b+d > 31 {
			return name
		}
	}
	return "differential"
}

func TestETC2_FullRangeRampIsPlanar(t *testing.T) {
	var tile Tile
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tile[y*4+x] = color.NRGBA{uint8(60 * x), uint8(50 * y), uint8(20 * (x + y)), 255}
		}
	}
	for _, heuristics := range []bool{true, false} {
		w := encodeETC2(DefaultContext(), &tile, heuristics)
		require.Equal(t, "planar", etcMode(w), "heuristics %v", heuristics)

		var out Tile
		decodeETC(w, &out)
		require.Less(t, tileErrRGB(&tile, &out), 16*3*16)
	}
}

func TestETC2_TwoHueCheckerUsesTOrH(t *testing.T) {
	checker := func(a, b color.NRGBA) *Tile {
		var tile Tile
		for i := range tile {
			tile[i] = a
			if (i+i/4)%2 != 0 {
				tile[i] = b
			}
		}
		return &tile
	}
	cases := []struct {
		name string
		tile *Tile
	}{
		{"red-blue", checker(color.NRGBA{220, 30, 30, 255}, color.NRGBA{30, 30, 220, 255})},
		// Both colors sit within a few steps of luma of each other.
		{"low-luma-range", checker(color.NRGBA{120, 60, 60, 255}, color.NRGBA{60, 60, 150, 255})},
	}
	for _, c := range cases {
		lo, hi := lumaRange(c.tile)
		for _, heuristics := range []bool{true, false} {
			w := encodeETC2(DefaultContext(), c.tile, heuristics)
			require.Contains(t, []string{"T", "H"}, etcMode(w), "%s heuristics %v luma %d..%d", c.name, heuristics, lo, hi)
		}
	}
}

func TestETCFitHalf_ClampedExtremes(t *testing.T) {
	// Base 132 reaches 0 and 255 only through clamping with the widest table.
	var tile Tile
	for i := range tile {
		v := uint8(0)
		if (i+i/4)%2 != 0 {
			v = 255
		}
		tile[i] = color.NRGBA{v, v, v, 255}
	}
	tbl, _ := etcFitHalf(&tile, [3]int{132, 132, 132}, false, 0)
	require.Equal(t, 7, tbl)

	var out Tile
	decodeETC(encodeETC1(DefaultContext(), &tile), &out)
	require.Zero(t, tileErrRGB(&tile, &out))
}
