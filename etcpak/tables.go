package etcpak

// etcModifiers holds the ETC1 intensity modifier tables, indexed by the 2-bit
// selector value (msb<<1 | lsb).
var etcModifiers = [8][4]int{
	{2, 8, -2, -8},
	{5, 17, -5, -17},
	{9, 29, -9, -29},
	{13, 42, -13, -42},
	{18, 60, -18, -60},
	{24, 80, -24, -80},
	{33, 106, -33, -106},
	{47, 183, -47, -183},
}

// etcDistances are the T and H mode paint distances.
var etcDistances = [8]int{3, 6, 11, 16, 23, 32, 41, 64}

// etcDiffDeltas maps a 3-bit two's complement delta to its value.
var etcDiffDeltas = [8]int{0, 1, 2, 3, -4, -3, -2, -1}

// eacModifiers holds the EAC modifier tables shared by ETC2 alpha and R11/RG11.
var eacModifiers = [16][8]int{
	{-3, -6, -9, -15, 2, 5, 8, 14},
	{-3, -7, -10, -13, 2, 6, 9, 12},
	{-2, -5, -8, -13, 1, 4, 7, 12},
	{-2, -4, -6, -13, 1, 3, 5, 12},
	{-3, -6, -8, -12, 2, 5, 7, 11},
	{-3, -7, -9, -11, 2, 6, 8, 10},
	{-4, -7, -8, -11, 3, 6, 7, 10},
	{-3, -5, -8, -11, 2, 4, 7, 10},
	{-2, -6, -8, -10, 1, 5, 7, 9},
	{-2, -5, -8, -10, 1, 4, 7, 9},
	{-2, -4, -8, -10, 1, 3, 7, 9},
	{-2, -5, -7, -10, 1, 4, 6, 9},
	{-3, -4, -7, -10, 2, 3, 6, 9},
	{-1, -2, -3, -10, 0, 1, 2, 9},
	{-4, -6, -8, -9, 3, 5, 7, 8},
	{-3, -5, -7, -9, 2, 4, 6, 8},
}

// mul8bit computes a*b/255 with rounding, for a, b in [0, 255].
func mul8bit(a, b int) int {
	t := a*b + 128
	return (t + (t >> 8)) >> 8
}

func expand4(v int) int { return v<<4 | v }
func expand5(v int) int { return v<<3 | v>>2 }
func expand6(v int) int { return v<<2 | v>>4 }
func expand7(v int) int { return v<<1 | v>>6 }

func clamp255(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sq(v int) int { return v * v }
