package etcpak

import "math/bits"

// MipLevelCount returns the length of a full mip chain ending at 1x1.
func MipLevelCount(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return bits.Len(uint(max(width, height)))
}

// MipLevelDims returns the size of mip level i.
func MipLevelDims(width, height, i int) (int, int) {
	return max(1, width>>i), max(1, height>>i)
}

// MipLevelSize returns the encoded byte size of mip level i. Levels smaller
// than a block still occupy one whole block.
func MipLevelSize(format Format, width, height, i int) int {
	w, h := MipLevelDims(width, height, i)
	return ((w + 3) / 4) * ((h + 3) / 4) * format.BlockBytes()
}

// MipChainSize returns the encoded byte size of the first levels mip levels.
func MipChainSize(format Format, width, height, levels int) int {
	n := 0
	for i := 0; i < levels; i++ {
		n += MipLevelSize(format, width, height, i)
	}
	return n
}

// BlockOffset returns the byte offset of block (bx, by) in a level that is
// blocksX blocks wide.
func BlockOffset(format Format, blocksX, bx, by int) int {
	return (by*blocksX + bx) * format.BlockBytes()
}
