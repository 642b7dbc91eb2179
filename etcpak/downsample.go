package etcpak

// Downsample halves img with a rounding 2x2 box filter. Odd edges reuse the
// last column or row; the result is never smaller than 1x1.
func Downsample(img *Image) (*Image, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	w, h := max(1, img.Width/2), max(1, img.Height/2)
	out := &Image{Pix: make([]byte, w*h*4), Width: w, Height: h}

	stride := img.stride()
	for y := 0; y < h; y++ {
		y0 := min(2*y, img.Height-1)
		y1 := min(2*y+1, img.Height-1)
		for x := 0; x < w; x++ {
			x0 := min(2*x, img.Width-1)
			x1 := min(2*x+1, img.Width-1)
			a, b := y0*stride+x0*4, y0*stride+x1*4
			c, d := y1*stride+x0*4, y1*stride+x1*4
			o := (y*w + x) * 4
			for ch := 0; ch < 4; ch++ {
				sum := int(img.Pix[a+ch]) + int(img.Pix[b+ch]) + int(img.Pix[c+ch]) + int(img.Pix[d+ch])
				out.Pix[o+ch] = uint8((sum + 2) / 4)
			}
		}
	}
	return out, nil
}
