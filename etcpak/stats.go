package etcpak

import "math"

// Stats holds the error of a decoded image against its source.
type Stats struct {
	MSE  float64
	RMSE float64
	PSNR float64 // +Inf for identical images
}

// CompareRGB measures the per-channel mean squared error over the RGB
// channels of two equally sized images.
func CompareRGB(orig, decoded *Image) (Stats, error) {
	if err := orig.validate(); err != nil {
		return Stats{}, err
	}
	if err := decoded.validate(); err != nil {
		return Stats{}, err
	}
	if orig.Width != decoded.Width || orig.Height != decoded.Height {
		return Stats{}, newError(ErrBadDimensions, "etcpak: compared images differ in size")
	}

	var sum uint64
	for y := 0; y < orig.Height; y++ {
		a := orig.Pix[y*orig.stride():]
		b := decoded.Pix[y*decoded.stride():]
		for x := 0; x < orig.Width*4; x += 4 {
			for ch := 0; ch < 3; ch++ {
				d := int(a[x+ch]) - int(b[x+ch])
				sum += uint64(d * d)
			}
		}
	}

	mse := float64(sum) / float64(orig.Width*orig.Height*3)
	return Stats{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		PSNR: 20*math.Log10(255) - 10*math.Log10(mse),
	}, nil
}
