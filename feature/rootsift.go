package feature

import "math"

const RootSiftEps = 1e-7

// RootSIFT：L1归一化后逐元素开方（原地修改，保留符号），L1和非零时L2范数为1
func RootSIFT(desc []Descriptor) {
	for _, d := range desc {
		var sum float64
		for _, v := range d {
			sum += math.Abs(float64(v))
		}
		for i, v := range d {
			r := math.Sqrt(math.Abs(float64(v)) / (sum + RootSiftEps))
			if v < 0 {
				r = -r
			}
			d[i] = float32(r)
		}
	}
}
