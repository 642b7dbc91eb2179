package etcpak

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Tile is a 4x4 block of texels in row-major order (index y*4+x).
type Tile [16]color.NRGBA

// Image is an RGBA8 image. Rows start Stride bytes apart; a zero Stride
// means the rows are tightly packed.
type Image struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

func (m *Image) stride() int {
	if m.Stride == 0 {
		return m.Width * 4
	}
	return m.Stride
}

// NewImage allocates a zeroed width x height image.
func NewImage(width, height int) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	return &Image{Pix: make([]byte, width*height*4), Width: width, Height: height}, nil
}

// ImageFromImage copies any image.Image into a tightly-packed RGBA8 image.
func ImageFromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	img, err := NewImage(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	dst := img.ToNRGBA()
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return img, nil
}

// ImageFromNRGBA views an image.NRGBA without copying.
func ImageFromNRGBA(src *image.NRGBA) *Image {
	b := src.Bounds()
	return &Image{Pix: src.Pix[src.PixOffset(b.Min.X, b.Min.Y):], Width: b.Dx(), Height: b.Dy(), Stride: src.Stride}
}

// ToNRGBA wraps the pixel buffer as an image.NRGBA without copying.
func (m *Image) ToNRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: m.Pix, Stride: m.stride(), Rect: image.Rect(0, 0, m.Width, m.Height)}
}

// BlocksX returns the number of block columns.
func (m *Image) BlocksX() int { return (m.Width + 3) / 4 }

// BlocksY returns the number of block rows.
func (m *Image) BlocksY() int { return (m.Height + 3) / 4 }

func (m *Image) validate() error {
	if m == nil {
		return newError(ErrBadParam, "etcpak: nil image")
	}
	if err := checkDimensions(m.Width, m.Height); err != nil {
		return err
	}
	if m.stride() < m.Width*4 || len(m.Pix) < (m.Height-1)*m.stride()+m.Width*4 {
		return newError(ErrBadParam, "etcpak: invalid RGBA8 buffer length")
	}
	return nil
}

// Tile extracts the block at block coordinates (bx, by). Texels past the right or
// bottom edge replicate the last column or row.
func (m *Image) Tile(bx, by int, t *Tile) {
	x0, y0 := bx*4, by*4
	for y := 0; y < 4; y++ {
		sy := min(y0+y, m.Height-1)
		row := sy * m.stride()
		for x := 0; x < 4; x++ {
			sx := min(x0+x, m.Width-1)
			p := row + sx*4
			t[y*4+x] = color.NRGBA{m.Pix[p], m.Pix[p+1], m.Pix[p+2], m.Pix[p+3]}
		}
	}
}

// SetTile writes the visible part of a decoded block back into the image.
func (m *Image) SetTile(bx, by int, t *Tile) {
	x0, y0 := bx*4, by*4
	for y := 0; y < 4 && y0+y < m.Height; y++ {
		row := (y0 + y) * m.stride()
		for x := 0; x < 4 && x0+x < m.Width; x++ {
			p := row + (x0+x)*4
			c := t[y*4+x]
			m.Pix[p], m.Pix[p+1], m.Pix[p+2], m.Pix[p+3] = c.R, c.G, c.B, c.A
		}
	}
}

// HasAlpha reports whether any texel has alpha below 255.
func (m *Image) HasAlpha() bool {
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.stride() : y*m.stride()+m.Width*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 255 {
				return true
			}
		}
	}
	return false
}

func (t *Tile) solid() bool {
	c := t[0]
	for i := 1; i < 16; i++ {
		if t[i] != c {
			return false
		}
	}
	return true
}

func (t *Tile) opaque() bool {
	for i := range t {
		if t[i].A != 255 {
			return false
		}
	}
	return true
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return newError(ErrBadDimensions, "etcpak: invalid image dimensions")
	}
	if width > 1<<16 || height > 1<<16 {
		return newError(ErrBadDimensions, "etcpak: image dimensions exceed 65536")
	}
	return nil
}

func channel(c color.NRGBA, ch int) int {
	switch ch {
	case 0:
		return int(c.R)
	case 1:
		return int(c.G)
	case 2:
		return int(c.B)
	}
	return int(c.A)
}

func setChannel(c *color.NRGBA, ch, v int) {
	switch ch {
	case 0:
		c.R = uint8(v)
	case 1:
		c.G = uint8(v)
	case 2:
		c.B = uint8(v)
	default:
		c.A = uint8(v)
	}
}
