package etcpak_test

import (
	"image/color"
	"math/bits"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfpld/etcpak/etcpak"
)

func noisyTile(seed uint64) *etcpak.Tile {
	r := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	jitter := func(v int) uint8 { return uint8(v + r.IntN(33) - 16) }
	var t etcpak.Tile
	for i := range t {
		t[i] = color.NRGBA{jitter(128), jitter(100), jitter(80), 255}
	}
	return &t
}

func checkerTile(a, b color.NRGBA) *etcpak.Tile {
	var t etcpak.Tile
	for i := range t {
		t[i] = a
		if (i+i/4)%2 != 0 {
			t[i] = b
		}
	}
	return &t
}

// splitTile paints a over the left half and b over the right, or over the
// top and bottom halves when horizontal is set.
func splitTile(a, b color.NRGBA, horizontal bool) *etcpak.Tile {
	var t etcpak.Tile
	for i := range t {
		second := i&3 >= 2
		if horizontal {
			second = i >= 8
		}
		t[i] = a
		if second {
			t[i] = b
		}
	}
	return &t
}

var (
	splitRed  = color.NRGBA{200, 40, 40, 255}
	splitBlue = color.NRGBA{40, 40, 200, 255}
)

// formatChannels lists the channels a format carries color in.
func formatChannels(f etcpak.Format) []int {
	switch f {
	case etcpak.FormatETC2R11, etcpak.FormatBC4:
		return []int{0}
	case etcpak.FormatETC2RG11, etcpak.FormatBC5:
		return []int{0, 1}
	case etcpak.FormatBC7:
		return []int{0, 1, 2, 3}
	}
	return []int{0, 1, 2}
}

func TestTileKinds_RoundTrip(t *testing.T) {
	var noisy []*etcpak.Tile
	for seed := uint64(1); seed <= 8; seed++ {
		noisy = append(noisy, noisyTile(seed))
	}

	kinds := []struct {
		name            string
		tiles           []*etcpak.Tile
		// Bounds on the per-channel MSE: RGB block formats, BC7, and the
		// one and two channel formats.
		rgb, bc7, plane float64
		skipETC1        bool
	}{
		{"noisy", noisy, 200, 100, 16, false},
		{"black-white", []*etcpak.Tile{checkerTile(color.NRGBA{0, 0, 0, 255}, color.NRGBA{255, 255, 255, 255})}, 16, 16, 16, false},
		// Each ETC1 sub-block of a two-hue checker holds both hues.
		{"red-blue", []*etcpak.Tile{checkerTile(color.NRGBA{220, 30, 30, 255}, color.NRGBA{30, 30, 220, 255})}, 64, 64, 32, true},
		{"vertical-split", []*etcpak.Tile{splitTile(splitRed, splitBlue, false)}, 50, 16, 16, false},
		{"horizontal-split", []*etcpak.Tile{splitTile(splitRed, splitBlue, true)}, 50, 16, 16, false},
	}

	for _, k := range kinds {
		for _, f := range etcpak.AllFormats {
			if k.skipETC1 && f == etcpak.FormatETC1 {
				continue
			}
			t.Run(k.name+"/"+f.String(), func(t *testing.T) {
				chans := formatChannels(f)
				bound := k.rgb
				switch {
				case f == etcpak.FormatBC7:
					bound = k.bc7
				case len(chans) < 3:
					bound = k.plane
				}
				total := 0.0
				for _, src := range k.tiles {
					total += channelMSE(src, encodeDecode(t, f, src), chans...)
				}
				require.Less(t, total/float64(len(k.tiles)), bound)
			})
		}
	}
}

func TestETC1_SplitOrientation(t *testing.T) {
	for _, c := range []struct {
		name       string
		horizontal bool
		flip       byte
	}{
		{"left-right", false, 0},
		{"top-bottom", true, 1},
	} {
		src := splitTile(splitRed, splitBlue, c.horizontal)
		block, err := etcpak.EncodeBlock(etcpak.FormatETC1, src)
		require.NoError(t, err)
		require.Equal(t, c.flip, block[3]&1, c.name)

		var out etcpak.Tile
		require.NoError(t, etcpak.DecodeBlock(etcpak.FormatETC1, block, &out))
		require.Less(t, tileErr(src, &out), 50.0, c.name)
	}
}

// bc7Mode reads the mode from the unary prefix in the first byte.
func bc7Mode(block []byte) int { return bits.TrailingZeros8(block[0]) }

func TestBC7_PartitionedModes(t *testing.T) {
	// A solid left half beside a ramp on the right fits no single line.
	var src etcpak.Tile
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src[y*4+x] = splitRed
			if x >= 2 {
				src[y*4+x] = color.NRGBA{40, uint8(40 + 40*y), 200, 255}
			}
		}
	}
	block, err := etcpak.EncodeBlock(etcpak.FormatBC7, &src)
	require.NoError(t, err)
	require.Equal(t, 1, bc7Mode(block))
	var out etcpak.Tile
	require.NoError(t, etcpak.DecodeBlock(etcpak.FormatBC7, block, &out))
	require.Less(t, channelMSE(&src, &out, 0, 1, 2, 3), 16.0)

	translucent := src
	for i := range translucent {
		if i&3 >= 2 {
			translucent[i].A = 128
		}
	}
	block, err = etcpak.EncodeBlock(etcpak.FormatBC7, &translucent)
	require.NoError(t, err)
	require.Equal(t, 7, bc7Mode(block))
	require.NoError(t, etcpak.DecodeBlock(etcpak.FormatBC7, block, &out))
	require.Less(t, channelMSE(&translucent, &out, 0, 1, 2, 3), 32.0)
}
