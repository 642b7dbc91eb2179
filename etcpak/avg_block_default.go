//go:build !goexperiment.simd || !amd64

package etcpak

func halfAveragesRGB(t *Tile) halfAverages {
	return halfAveragesScalar(t)
}

func kernelName() string { return "scalar" }
