package feature

import (
	"errors"
	"math"
	"sort"
)

var ErrDimensionMismatch = errors.New("descriptor dimensions differ")

const DefaultRatio = 0.75

type Neighbor struct {
	TrainIdx int
	Distance float64
}

// k近邻搜索，返回每个query描述子按距离升序的近邻
type KnnSearcher interface {
	KnnMatch(query, train []Descriptor, k int) ([][]Neighbor, error)
}

type Match struct {
	QueryIdx       int
	TrainIdx       int
	Distance       float64
	SecondDistance float64
}

// 暴力L2搜索
type BruteForce struct{}

func (BruteForce) KnnMatch(query, train []Descriptor, k int) (ret [][]Neighbor, err error) {
	if k <= 0 || len(train) == 0 {
		ret = make([][]Neighbor, len(query))
		return
	}
	ret = make([][]Neighbor, len(query))
	for qi, q := range query {
		best := make([]Neighbor, 0, k+1)
		for ti, t := range train {
			if len(t) != len(q) {
				err = ErrDimensionMismatch
				return
			}
			d := l2(q, t)
			if len(best) == k && d >= best[k-1].Distance {
				continue
			}
			pos := sort.Search(len(best), func(i int) bool { return best[i].Distance > d })
			best = append(best, Neighbor{})
			copy(best[pos+1:], best[pos:])
			best[pos] = Neighbor{TrainIdx: ti, Distance: d}
			if len(best) > k {
				best = best[:k]
			}
		}
		ret[qi] = best
	}
	return
}

func l2(a, b Descriptor) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

// Lowe比值检验：最近距离小于ratio倍次近距离才保留；近邻不足两个的丢弃
func RatioTest(knn [][]Neighbor, ratio float64) (ms []Match) {
	for qi, nb := range knn {
		if len(nb) < 2 {
			continue
		}
		if nb[0].Distance < ratio*nb[1].Distance {
			ms = append(ms, Match{
				QueryIdx:       qi,
				TrainIdx:       nb[0].TrainIdx,
				Distance:       nb[0].Distance,
				SecondDistance: nb[1].Distance,
			})
		}
	}
	return
}

type Matcher struct {
	Searcher KnnSearcher
	Ratio    float64
}

func NewMatcher(searcher KnnSearcher, ratio float64) *Matcher {
	if searcher == nil {
		searcher = BruteForce{}
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultRatio
	}
	return &Matcher{Searcher: searcher, Ratio: ratio}
}

// 以query为照片、train为参考影像做k=2近邻匹配+比值检验
func (m *Matcher) Match(query, train *Set) (ms []Match, err error) {
	if query.Len() == 0 || train.Len() < 2 {
		return
	}
	knn, err := m.Searcher.KnnMatch(query.Descriptors, train.Descriptors, 2)
	if err != nil {
		return
	}
	ms = RatioTest(knn, m.Ratio)
	return
}

// 取出匹配对应的像素坐标
func Correspondences(query, train *Set, ms []Match) (src, dst []Point) {
	src = make([]Point, len(ms))
	dst = make([]Point, len(ms))
	for i, m := range ms {
		src[i] = query.Keypoints[m.QueryIdx].Pt()
		dst[i] = train.Keypoints[m.TrainIdx].Pt()
	}
	return
}
