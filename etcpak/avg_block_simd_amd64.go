//go:build goexperiment.simd && amd64

package etcpak

import (
	"simd/archsimd"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Each index table moves one channel of the two left texels of a row into
// lanes 0..1 and the two right texels into lanes 8..9.
var (
	halfIdxR = archsimd.LoadInt8x16(&[16]int8{0, 4, -1, -1, -1, -1, -1, -1, 8, 12, -1, -1, -1, -1, -1, -1})
	halfIdxG = archsimd.LoadInt8x16(&[16]int8{1, 5, -1, -1, -1, -1, -1, -1, 9, 13, -1, -1, -1, -1, -1, -1})
	halfIdxB = archsimd.LoadInt8x16(&[16]int8{2, 6, -1, -1, -1, -1, -1, -1, 10, 14, -1, -1, -1, -1, -1, -1})
	halfZero = archsimd.LoadUint8x16(&[16]uint8{})
)

func halfAveragesRGB(t *Tile) halfAverages {
	if !cpu.X86.HasAVX {
		return halfAveragesScalar(t)
	}

	// rows[y][h][ch]: row y, h 0 left / 1 right.
	var rows [4][2][3]int
	for y := 0; y < 4; y++ {
		v := archsimd.LoadUint8x16((*[16]uint8)(unsafe.Pointer(&t[y*4])))
		for ch, idx := range [3]archsimd.Int8x16{halfIdxR, halfIdxG, halfIdxB} {
			s := v.PermuteOrZero(idx).SumAbsDiff(halfZero)
			rows[y][0][ch] = int(s.GetElem(0))
			rows[y][1][ch] = int(s.GetElem(4))
		}
	}

	var avg halfAverages
	for ch := 0; ch < 3; ch++ {
		l := rows[0][0][ch] + rows[1][0][ch] + rows[2][0][ch] + rows[3][0][ch]
		r := rows[0][1][ch] + rows[1][1][ch] + rows[2][1][ch] + rows[3][1][ch]
		top := rows[0][0][ch] + rows[0][1][ch] + rows[1][0][ch] + rows[1][1][ch]
		bot := rows[2][0][ch] + rows[2][1][ch] + rows[3][0][ch] + rows[3][1][ch]
		avg[0][ch] = (l + 4) / 8
		avg[1][ch] = (r + 4) / 8
		avg[2][ch] = (top + 4) / 8
		avg[3][ch] = (bot + 4) / 8
	}
	return avg
}

func kernelName() string {
	if cpu.X86.HasAVX {
		return "archsimd-avx"
	}
	return "scalar"
}
