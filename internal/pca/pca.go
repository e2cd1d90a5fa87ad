// 包 pca：对稀疏特征矩阵做截断奇异值分解，得到降维坐标与载荷
// 背景：下游聚类消费 (坐标, 行序标识符)；组件数按目标解释方差比例挑选，上限封顶。
// 算法本身完全委托 gonum，这里只负责方差口径与产物裁剪。
package pca

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Component：单个主成分的方差摘要，随坐标一并落盘供解释
type Component struct {
	Component         int     `json:"component"`
	ExplainedVariance float64 `json:"explained_variance"`
	ExplainedRatio    float64 `json:"explained_ratio"`
	CumulativeRatio   float64 `json:"cumulative_ratio"`
}

// Result：降维结果
// Coords 形状 (单元数 × 组件数)，行序与输入矩阵一致；Loadings 形状 (组件数 × 特征数)
type Result struct {
	NComponents    int
	TargetVariance float64
	TargetReached  bool
	TotalExplained float64
	Coords         *mat.Dense
	Loadings       *mat.Dense
	Components     []Component
}

// Run：薄 SVD 分解并按目标方差截断
// 约束：maxComponents 是硬上限；达不到目标方差时取上限并由 TargetReached 标记，调用方决定是否告警
func Run(m mat.Matrix, targetVariance float64, maxComponents int) (*Result, error) {
	r, c := m.Dims()
	if r < 2 {
		return nil, errors.Errorf("need at least 2 rows, got %d", r)
	}
	if targetVariance <= 0 || targetVariance > 1 {
		return nil, errors.Errorf("target variance %v out of (0, 1]", targetVariance)
	}
	if maxComponents < 1 {
		return nil, errors.Errorf("max components %d < 1", maxComponents)
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, errors.New("svd factorization did not converge")
	}
	s := svd.Values(nil)

	// 方差口径：σ_i²/(n-1)，比率以全部奇异值的平方和为分母
	variances := make([]float64, len(s))
	total := 0.0
	for i, sv := range s {
		variances[i] = sv * sv / float64(r-1)
		total += variances[i]
	}
	if total == 0 {
		return nil, errors.New("matrix has zero total variance")
	}

	kmax := maxComponents
	if kmax > len(s) {
		kmax = len(s)
	}
	n := kmax
	reached := false
	cum := 0.0
	for i := 0; i < kmax; i++ {
		cum += variances[i] / total
		if cum >= targetVariance {
			n = i + 1
			reached = true
			break
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	coords := mat.NewDense(r, n, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < n; j++ {
			coords.Set(i, j, u.At(i, j)*s[j])
		}
	}
	loadings := mat.NewDense(n, c, nil)
	for j := 0; j < n; j++ {
		for p := 0; p < c; p++ {
			loadings.Set(j, p, v.At(p, j))
		}
	}

	comps := make([]Component, n)
	cumRatio := 0.0
	for i := 0; i < n; i++ {
		ratio := variances[i] / total
		cumRatio += ratio
		comps[i] = Component{
			Component:         i + 1,
			ExplainedVariance: variances[i],
			ExplainedRatio:    ratio,
			CumulativeRatio:   cumRatio,
		}
	}

	return &Result{
		NComponents:    n,
		TargetVariance: targetVariance,
		TargetReached:  reached,
		TotalExplained: cumRatio,
		Coords:         coords,
		Loadings:       loadings,
		Components:     comps,
	}, nil
}

// TopLoadings：按载荷绝对值返回某个成分的前 k 个特征下标
func TopLoadings(res *Result, component, k int) []int {
	_, c := res.Loadings.Dims()
	idx := make([]int, c)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return math.Abs(res.Loadings.At(component, idx[a])) > math.Abs(res.Loadings.At(component, idx[b]))
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
