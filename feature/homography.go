package feature

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoHomography = errors.New("no homography with enough inliers")
	ErrTooFewPoints = errors.New("at least 4 correspondences are required")
	ErrDegenerate   = errors.New("degenerate point configuration")
)

const minSample = 4

// 行优先3x3单应矩阵，H[8]归一化为1
type Homography struct {
	H [9]float64
}

func Identity() *Homography {
	return &Homography{H: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

func (h *Homography) Apply(p Point) (q Point, ok bool) {
	w := h.H[6]*p.X + h.H[7]*p.Y + h.H[8]
	if math.Abs(w) < 1e-12 {
		return
	}
	q.X = (h.H[0]*p.X + h.H[1]*p.Y + h.H[2]) / w
	q.Y = (h.H[3]*p.X + h.H[4]*p.Y + h.H[5]) / w
	ok = true
	return
}

func (h *Homography) Det() float64 {
	m := h.H
	return m[0]*(m[4]*m[8]-m[5]*m[7]) - m[1]*(m[3]*m[8]-m[5]*m[6]) + m[2]*(m[3]*m[7]-m[4]*m[6])
}

type RansacOptions struct {
	Threshold  float64 // 重投影误差阈值（像素）
	MaxIters   int
	Confidence float64
	MinInliers int
	Seed       int64
}

func DefaultRansacOptions() RansacOptions {
	return RansacOptions{
		Threshold:  5.0,
		MaxIters:   2000,
		Confidence: 0.995,
		MinInliers: 4,
		Seed:       42,
	}
}

// RANSAC估计src到dst的单应矩阵，返回内点下标（升序）；相同输入与种子结果相同
func EstimateHomography(src, dst []Point, opts RansacOptions) (h *Homography, inliers []int, err error) {
	n := len(src)
	if n != len(dst) {
		err = ErrTooFewPoints
		return
	}
	if n < minSample {
		err = ErrTooFewPoints
		return
	}
	if opts.MinInliers < minSample {
		opts.MinInliers = minSample
	}
	if opts.MaxIters <= 0 {
		opts.MaxIters = DefaultRansacOptions().MaxIters
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = DefaultRansacOptions().Confidence
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultRansacOptions().Threshold
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	var (
		best     *Homography
		bestIn   []int
		sIdx     [minSample]int
		sSrc     = make([]Point, minSample)
		sDst     = make([]Point, minSample)
		maxIters = opts.MaxIters
	)
	for it := 0; it < maxIters; it++ {
		sample(rng, n, sIdx[:])
		for i, k := range sIdx {
			sSrc[i], sDst[i] = src[k], dst[k]
		}
		if collinear(sSrc) || collinear(sDst) {
			continue
		}
		cand, e := fitHomography(sSrc, sDst)
		if e != nil {
			continue
		}
		in := countInliers(cand, src, dst, opts.Threshold)
		if len(in) > len(bestIn) {
			best, bestIn = cand, in
			maxIters = min(maxIters, adaptiveIters(len(in), n, opts.Confidence, opts.MaxIters))
		}
	}
	if best == nil || len(bestIn) < opts.MinInliers {
		err = ErrNoHomography
		return
	}
	h, inliers = best, bestIn
	// 用全部内点最小二乘重新拟合，支持度下降则保留采样解
	if refit, e := fitHomography(pick(src, bestIn), pick(dst, bestIn)); e == nil {
		if in := countInliers(refit, src, dst, opts.Threshold); len(in) >= len(bestIn) {
			h, inliers = refit, in
		}
	}
	if math.Abs(h.Det()) < 1e-12 {
		h, inliers = nil, nil
		err = ErrDegenerate
	}
	return
}

func sample(rng *rand.Rand, n int, idx []int) {
	for i := range idx {
		for idx[i] = rng.Intn(n); seen(idx[:i], idx[i]); idx[i] = rng.Intn(n) {
		}
	}
}

func seen(idx []int, k int) bool {
	for _, v := range idx {
		if v == k {
			return true
		}
	}
	return false
}

func pick(pts []Point, idx []int) (out []Point) {
	out = make([]Point, len(idx))
	for i, k := range idx {
		out[i] = pts[k]
	}
	return
}

func adaptiveIters(inliers, total int, confidence float64, maxIters int) int {
	w := float64(inliers) / float64(total)
	p := math.Pow(w, minSample)
	if p >= 1 {
		return 1
	}
	if p <= 0 {
		return maxIters
	}
	num := math.Log(1 - confidence)
	den := math.Log(1 - p)
	if den >= 0 || -num >= float64(maxIters)*(-den) {
		return maxIters
	}
	return int(math.Ceil(num / den))
}

func countInliers(h *Homography, src, dst []Point, thr float64) (in []int) {
	thr2 := thr * thr
	for i := range src {
		p, ok := h.Apply(src[i])
		if !ok {
			continue
		}
		dx, dy := p.X-dst[i].X, p.Y-dst[i].Y
		if dx*dx+dy*dy <= thr2 {
			in = append(in, i)
		}
	}
	return
}

// 任意三点共线即视为退化样本
func collinear(pts []Point) bool {
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				a, b, c := pts[i], pts[j], pts[k]
				cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
				scale := math.Abs(b.X-a.X) + math.Abs(b.Y-a.Y) + math.Abs(c.X-a.X) + math.Abs(c.Y-a.Y)
				if math.Abs(cross) <= 1e-9*scale*scale+1e-12 {
					return true
				}
			}
		}
	}
	return false
}

// Hartley归一化：平移到质心，缩放使平均距离为sqrt(2)
func normalize(pts []Point) (out []Point, t [9]float64) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))
	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= float64(len(pts))
	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}
	out = make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{(p.X - cx) * s, (p.Y - cy) * s}
	}
	t = [9]float64{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}
	return
}

// DLT求解：A的最小奇异值对应的右奇异向量
func fitHomography(src, dst []Point) (h *Homography, err error) {
	n := len(src)
	if n < minSample || n != len(dst) {
		err = ErrTooFewPoints
		return
	}
	ns, ts := normalize(src)
	nd, td := normalize(dst)
	rows := max(2*n, 9)
	a := mat.NewDense(rows, 9, nil)
	for i := 0; i < n; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		err = ErrDegenerate
		return
	}
	var v mat.Dense
	svd.VTo(&v)
	var hn [9]float64
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}
	// H = Td^-1 * Hn * Ts
	tdInv := [9]float64{1 / td[0], 0, -td[2] / td[0], 0, 1 / td[4], -td[5] / td[4], 0, 0, 1}
	full := mul3(tdInv, mul3(hn, ts))
	if math.Abs(full[8]) < 1e-12 {
		err = ErrDegenerate
		return
	}
	for i := range full {
		full[i] /= full[8]
	}
	h = &Homography{H: full}
	return
}

func mul3(a, b [9]float64) (c [9]float64) {
	for r := 0; r < 3; r++ {
		for k := 0; k < 3; k++ {
			c[r*3+k] = a[r*3]*b[k] + a[r*3+1]*b[3+k] + a[r*3+2]*b[6+k]
		}
	}
	return
}
