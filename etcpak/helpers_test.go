package etcpak_test

import (
	"image/color"

	"github.com/wolfpld/etcpak/etcpak"
)

func solidTile(c color.NRGBA) *etcpak.Tile {
	var t etcpak.Tile
	for i := range t {
		t[i] = c
	}
	return &t
}

// gradientTile is a smooth opaque tile with independent slopes per channel.
func gradientTile() *etcpak.Tile {
	var t etcpak.Tile
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			t[y*4+x] = color.NRGBA{
				R: uint8(100 + 4*x),
				G: uint8(80 + 4*y),
				B: uint8(60 + 2*(x+y)),
				A: 255,
			}
		}
	}
	return &t
}

// gradientImage fills a w x h image with smooth ramps; alpha ramps too when
// withAlpha is set.
func gradientImage(w, h int, withAlpha bool) *etcpak.Image {
	img, err := etcpak.NewImage(w, h)
	if err != nil {
		panic(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := (y*w + x) * 4
			img.Pix[p+0] = uint8(x * 255 / max(1, w-1))
			img.Pix[p+1] = uint8(y * 255 / max(1, h-1))
			img.Pix[p+2] = uint8((x + y) * 127 / max(1, w+h-2))
			img.Pix[p+3] = 255
			if withAlpha {
				img.Pix[p+3] = uint8(64 + (x*191)/max(1, w-1))
			}
		}
	}
	return img
}

// channelMSE returns the mean squared error over the listed channels
// (0 R, 1 G, 2 B, 3 A).
func channelMSE(a, b *etcpak.Tile, chans ...int) float64 {
	sum := 0
	for i := range a {
		ca := [4]uint8{a[i].R, a[i].G, a[i].B, a[i].A}
		cb := [4]uint8{b[i].R, b[i].G, b[i].B, b[i].A}
		for _, ch := range chans {
			d := int(ca[ch]) - int(cb[ch])
			sum += d * d
		}
	}
	return float64(sum) / float64(16*len(chans))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
