package vision

import (
	"github.com/wgdzlh/georef/feature"

	"gocv.io/x/gocv"
)

// OpenCV暴力匹配（L2范数），实现feature.KnnSearcher
type BFMatcher struct{}

func (BFMatcher) KnnMatch(query, train []feature.Descriptor, k int) (ret [][]feature.Neighbor, err error) {
	ret = make([][]feature.Neighbor, len(query))
	if len(query) == 0 || len(train) == 0 || k <= 0 {
		return
	}
	q, err := descriptorsToMat(query)
	if err != nil {
		return
	}
	defer q.Close()
	t, err := descriptorsToMat(train)
	if err != nil {
		return
	}
	defer t.Close()
	if q.Cols() != t.Cols() {
		err = feature.ErrDimensionMismatch
		return
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormL2, false)
	defer bf.Close()
	for _, row := range bf.KnnMatch(q, t, k) {
		if len(row) == 0 {
			continue
		}
		qi := row[0].QueryIdx
		if qi < 0 || qi >= len(ret) {
			continue
		}
		nb := make([]feature.Neighbor, len(row))
		for i, m := range row {
			nb[i] = feature.Neighbor{TrainIdx: m.TrainIdx, Distance: m.Distance}
		}
		ret[qi] = nb
	}
	return
}
