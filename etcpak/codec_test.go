package etcpak_test

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfpld/etcpak/etcpak"
)

func encodeDecode(t *testing.T, format etcpak.Format, tile *etcpak.Tile) *etcpak.Tile {
	t.Helper()
	block, err := etcpak.EncodeBlock(format, tile)
	require.NoError(t, err)
	require.Len(t, block, format.BlockBytes())
	var out etcpak.Tile
	require.NoError(t, etcpak.DecodeBlock(format, block, &out))
	return &out
}

func TestEncodeBlock_Lengths(t *testing.T) {
	for _, f := range etcpak.AllFormats {
		block, err := etcpak.EncodeBlock(f, gradientTile())
		require.NoError(t, err, f.String())
		require.Contains(t, []int{8, 16}, len(block), f.String())
		require.Equal(t, f.BlockBytes(), len(block), f.String())
	}
}

func TestGradientRoundTrip(t *testing.T) {
	rgb := []int{0, 1, 2}
	cases := []struct {
		format etcpak.Format
		chans  []int
		maxMSE float64
	}{
		{etcpak.FormatETC1, rgb, 100},
		{etcpak.FormatETC2RGB, rgb, 100},
		{etcpak.FormatETC2RGBA, rgb, 100},
		{etcpak.FormatETC2R11, []int{0}, 4},
		{etcpak.FormatETC2RG11, []int{0, 1}, 4},
		{etcpak.FormatBC1, rgb, 100},
		{etcpak.FormatBC3, rgb, 100},
		{etcpak.FormatBC4, []int{0}, 4},
		{etcpak.FormatBC5, []int{0, 1}, 4},
		{etcpak.FormatBC7, []int{0, 1, 2, 3}, 16},
	}
	src := gradientTile()
	for _, c := range cases {
		t.Run(c.format.String(), func(t *testing.T) {
			out := encodeDecode(t, c.format, src)
			require.Less(t, channelMSE(src, out, c.chans...), c.maxMSE)
		})
	}
}

func TestSolidRoundTrip_Exact(t *testing.T) {
	c := color.NRGBA{R: 77, G: 199, B: 3, A: 141}
	src := solidTile(c)

	out := encodeDecode(t, etcpak.FormatETC2R11, src)
	for i := range out {
		require.Equal(t, color.NRGBA{R: 77, A: 255}, out[i])
	}
	out = encodeDecode(t, etcpak.FormatETC2RG11, src)
	for i := range out {
		require.Equal(t, color.NRGBA{R: 77, G: 199, A: 255}, out[i])
	}
	out = encodeDecode(t, etcpak.FormatBC4, src)
	for i := range out {
		require.Equal(t, color.NRGBA{R: 77, A: 255}, out[i])
	}
	out = encodeDecode(t, etcpak.FormatBC5, src)
	for i := range out {
		require.Equal(t, color.NRGBA{R: 77, G: 199, A: 255}, out[i])
	}
	out = encodeDecode(t, etcpak.FormatBC3, src)
	for i := range out {
		require.Equal(t, uint8(141), out[i].A)
	}
	out = encodeDecode(t, etcpak.FormatETC2RGBA, src)
	for i := range out {
		require.Equal(t, uint8(141), out[i].A)
	}
}

func TestSolidRoundTrip_ETCRepresentable(t *testing.T) {
	for _, f := range []etcpak.Format{etcpak.FormatETC1, etcpak.FormatETC2RGB, etcpak.FormatETC2RGBA} {
		for _, c := range []color.NRGBA{{255, 255, 255, 255}, {134, 134, 134, 255}, {0, 0, 0, 255}} {
			out := encodeDecode(t, f, solidTile(c))
			for i := range out {
				require.Equal(t, c, out[i], "%s %v", f, c)
			}
		}
	}
}

func TestBC1_SolidRed(t *testing.T) {
	out := encodeDecode(t, etcpak.FormatBC1, solidTile(color.NRGBA{R: 255, A: 255}))
	for i := range out {
		require.LessOrEqual(t, absDiff(out[i].R, 255), 2)
		require.LessOrEqual(t, int(out[i].G), 2)
		require.LessOrEqual(t, int(out[i].B), 2)
		require.Equal(t, uint8(255), out[i].A)
	}
}

func TestBC7_SolidOpaqueWithinOne(t *testing.T) {
	for _, c := range []color.NRGBA{
		{0, 0, 0, 255},
		{255, 255, 255, 255},
		{13, 200, 77, 255},
		{128, 64, 250, 255},
	} {
		out := encodeDecode(t, etcpak.FormatBC7, solidTile(c))
		for i := range out {
			require.LessOrEqual(t, absDiff(out[i].R, c.R), 1, "%v", c)
			require.LessOrEqual(t, absDiff(out[i].G, c.G), 1, "%v", c)
			require.LessOrEqual(t, absDiff(out[i].B, c.B), 1, "%v", c)
			require.Equal(t, uint8(255), out[i].A, "%v", c)
		}
	}
}

func TestBC7_OpaqueBlocksDecodeOpaque(t *testing.T) {
	out := encodeDecode(t, etcpak.FormatBC7, gradientTile())
	for i := range out {
		require.Equal(t, uint8(255), out[i].A)
	}
}

func TestBC7_AlphaRoundTrip(t *testing.T) {
	src := gradientTile()
	for i := range src {
		src[i].A = uint8(40 + 12*i)
	}
	out := encodeDecode(t, etcpak.FormatBC7, src)
	require.Less(t, channelMSE(src, out, 0, 1, 2, 3), 16.0)
}

func TestBC7_Deterministic(t *testing.T) {
	src := gradientTile()
	src[5].A = 10
	cfg, err := etcpak.ConfigInit(etcpak.FormatBC7, etcpak.EncodeThorough)
	require.NoError(t, err)

	a := make([]byte, 16)
	b := make([]byte, 16)
	require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, a))
	require.NoError(t, etcpak.NewCodecContext().EncodeBlock(&cfg, src, b))
	require.Equal(t, a, b)
}

func TestBC7_ReservedBlockDecodesTransparent(t *testing.T) {
	var out etcpak.Tile
	out[0] = color.NRGBA{1, 2, 3, 4}
	require.NoError(t, etcpak.DecodeBlock(etcpak.FormatBC7, make([]byte, 16), &out))
	require.Equal(t, etcpak.Tile{}, out)
}

func TestETC1_TopWhiteBottomBlack(t *testing.T) {
	var src etcpak.Tile
	for i := range src {
		v := uint8(255)
		if i >= 8 {
			v = 0
		}
		src[i] = color.NRGBA{v, v, v, 255}
	}
	out := encodeDecode(t, etcpak.FormatETC1, &src)

	luma := func(c color.NRGBA) int { return int(c.R)*77 + int(c.G)*151 + int(c.B)*28 }
	minTop, maxBottom := 1<<30, -1
	for i := range out {
		if i < 8 {
			minTop = min(minTop, luma(out[i]))
		} else {
			maxBottom = max(maxBottom, luma(out[i]))
		}
	}
	require.Greater(t, minTop, maxBottom)
}

func tileErr(a, b *etcpak.Tile) float64 { return channelMSE(a, b, 0, 1, 2) }

func TestETC2_NeverWorseThanETC1(t *testing.T) {
	checker := etcpak.Tile{}
	for i := range checker {
		if (i+i/4)%2 == 0 {
			checker[i] = color.NRGBA{220, 30, 30, 255}
		} else {
			checker[i] = color.NRGBA{20, 40, 230, 255}
		}
	}
	tiles := []*etcpak.Tile{gradientTile(), &checker}

	for _, src := range tiles {
		etc1 := tileErr(src, encodeDecode(t, etcpak.FormatETC1, src))
		for _, heuristics := range []bool{true, false} {
			cfg, err := etcpak.ConfigInit(etcpak.FormatETC2RGB, etcpak.EncodeMedium)
			require.NoError(t, err)
			cfg.Heuristics = heuristics
			block := make([]byte, 8)
			require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, block))
			var out etcpak.Tile
			require.NoError(t, etcpak.DecodeBlock(etcpak.FormatETC2RGB, block, &out))
			require.LessOrEqual(t, tileErr(src, &out), etc1)
		}
	}

	// Two far-apart colors are the case T and H modes exist for.
	etc2 := tileErr(&checker, encodeDecode(t, etcpak.FormatETC2RGB, &checker))
	etc1 := tileErr(&checker, encodeDecode(t, etcpak.FormatETC1, &checker))
	require.Less(t, etc2, etc1)
}

func TestDither_IgnoredForETC2(t *testing.T) {
	src := gradientTile()
	cfg, err := etcpak.ConfigInit(etcpak.FormatETC2RGB, etcpak.EncodeMedium)
	require.NoError(t, err)

	plain := make([]byte, 8)
	require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, plain))
	cfg.Dither = true
	dithered := make([]byte, 8)
	require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, dithered))
	require.Equal(t, plain, dithered)
}

func TestDither_DoesNotModifyTile(t *testing.T) {
	src := gradientTile()
	orig := *src
	cfg, err := etcpak.ConfigInit(etcpak.FormatBC1, etcpak.EncodeMedium)
	require.NoError(t, err)
	cfg.Dither = true
	out := make([]byte, 8)
	require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, out))
	require.Equal(t, orig, *src)

	var dec etcpak.Tile
	require.NoError(t, etcpak.DecodeBlock(etcpak.FormatBC1, out, &dec))
	require.Less(t, tileErr(src, &dec), 100.0)
}

func TestEncodeBlock_Errors(t *testing.T) {
	var zero etcpak.CodecContext
	cfg, err := etcpak.ConfigInit(etcpak.FormatBC7, etcpak.EncodeFast)
	require.NoError(t, err)
	err = zero.EncodeBlock(&cfg, gradientTile(), make([]byte, 16))
	require.Equal(t, etcpak.ErrBadContext, etcpak.ErrorCodeOf(err))

	zero.Init()
	require.True(t, zero.Ready())
	require.NoError(t, zero.EncodeBlock(&cfg, gradientTile(), make([]byte, 16)))

	err = etcpak.DefaultContext().EncodeBlock(&cfg, gradientTile(), make([]byte, 8))
	require.Equal(t, etcpak.ErrBadBlockSize, etcpak.ErrorCodeOf(err))

	_, err = etcpak.EncodeBlock(etcpak.Format(0), gradientTile())
	require.Equal(t, etcpak.ErrBadFormat, etcpak.ErrorCodeOf(err))
}

func TestDecodeBlock_Errors(t *testing.T) {
	var out etcpak.Tile
	err := etcpak.DecodeBlock(etcpak.FormatETC1, make([]byte, 16), &out)
	require.Equal(t, etcpak.ErrBadBlockSize, etcpak.ErrorCodeOf(err))

	err = etcpak.DecodeBlock(etcpak.Format(42), make([]byte, 8), &out)
	require.Equal(t, etcpak.ErrBadFormat, etcpak.ErrorCodeOf(err))

	err = etcpak.DecodeBlock(etcpak.FormatETC1, make([]byte, 8), nil)
	require.Equal(t, etcpak.ErrBadParam, etcpak.ErrorCodeOf(err))
}

func TestParseFormat_Aliases(t *testing.T) {
	for name, want := range map[string]etcpak.Format{
		"dxt1": etcpak.FormatBC1,
		"DXT5": etcpak.FormatBC3,
		"bptc": etcpak.FormatBC7,
		"rg11": etcpak.FormatETC2RG11,
		"etc2": etcpak.FormatETC2RGB,
	} {
		got, err := etcpak.ParseFormat(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	for _, f := range etcpak.AllFormats {
		got, err := etcpak.ParseFormat(f.String())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
	_, err := etcpak.ParseFormat("pvrtc")
	require.Equal(t, etcpak.ErrBadFormat, etcpak.ErrorCodeOf(err))
}
