package etcpak

// halfAverages holds the rounded mean RGB of the left, right, top and bottom
// 2x4 halves of a tile, in that order.
type halfAverages [4][3]int

func halfAveragesScalar(t *Tile) halfAverages {
	var sum [4][3]int
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := t[y*4+x]
			h := x >> 1 // 0 left, 1 right
			v := 2 + y>>1
			sum[h][0] += int(c.R)
			sum[h][1] += int(c.G)
			sum[h][2] += int(c.B)
			sum[v][0] += int(c.R)
			sum[v][1] += int(c.G)
			sum[v][2] += int(c.B)
		}
	}

	var avg halfAverages
	for i := range sum {
		for ch := 0; ch < 3; ch++ {
			avg[i][ch] = (sum[i][ch] + 4) / 8
		}
	}
	return avg
}
