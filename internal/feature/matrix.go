package feature

import (
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/pkg/errors"
)

// NormalizeContinuous：把原始值线性缩放到训练期区间上
// 约束：缺失值取 0.0（下游线性代数不接受 NULL）；零方差字段取 0.5；
// 不做截断——推断期新单元落在训练区间之外时，越界输出正是期望行为
func NormalizeContinuous(raw, min, max *float64) float64 {
	if raw == nil || min == nil || max == nil {
		return 0.0
	}
	if *min == *max {
		return 0.5
	}
	return (*raw - *min) / (*max - *min)
}

// NormalizeVegetationShare：0-100 百分比缩放到 0-1，缺失取 0
func NormalizeVegetationShare(raw *float64) float64 {
	if raw == nil {
		return 0.0
	}
	return *raw / 100.0
}

// BuildStats：构建过程中被默认值吸收的缺失/未匹配计数
// 背景：未匹配类别原实现静默丢弃；这里按字段计数并随摘要输出，保留可观测性
type BuildStats struct {
	MissingContinuous int
	MissingVegetation int
	MissingCategory   int
	UnmatchedCategory map[string]int
}

// UnmatchedTotal：全部字段的未匹配类别合计
func (s BuildStats) UnmatchedTotal() int {
	n := 0
	for _, c := range s.UnmatchedCategory {
		n += c
	}
	return n
}

// BuildResult：矩阵与其随行契约
// 三件套（矩阵、行序标识符、列序特征名）必须整体消费，行列对应一旦丢失，
// 后续所有聚类/分析结果都会被无声错标
type BuildResult struct {
	Matrix       *sparse.COO
	IDs          []int64
	FeatureNames []string
	Rows         int
	Cols         int
	Stats        BuildStats
}

// Build：把空间单元集合变换为固定宽度的稀疏特征矩阵
// 行序 = 标识符升序；列序 = 定义序 + 词表序。纯变换，无 I/O。
// 约束：逐行错误意味着上游快照与定义不一致，属配置缺陷，整批终止而不是跳行
func Build(def Definition, ranges RangeSet, vocabs Vocabularies, units []Unit) (*BuildResult, error) {
	if err := def.Validate(); err != nil {
		return nil, errors.Wrap(err, "definition")
	}
	if err := ranges.Complete(def); err != nil {
		return nil, errors.Wrap(err, "ranges")
	}
	for _, f := range def.Categorical {
		if _, ok := vocabs[f.Prefix]; !ok {
			return nil, errors.Errorf("vocabularies missing field %q", f.Prefix)
		}
	}

	// 词表 ID → 绝对列号
	denseWidth := def.DenseWidth()
	cols := def.FeatureCount(vocabs)
	catCols := make([]map[int64]int, len(def.Categorical))
	offset := denseWidth
	for i, f := range def.Categorical {
		m := make(map[int64]int, len(vocabs[f.Prefix]))
		for j, id := range vocabs[f.Prefix] {
			m[id] = offset + j
		}
		catCols[i] = m
		offset += len(vocabs[f.Prefix])
	}

	ordered := append([]Unit(nil), units...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	coo := sparse.NewCOO(len(ordered), cols, nil, nil, nil)
	stats := BuildStats{UnmatchedCategory: map[string]int{}}
	ids := make([]int64, len(ordered))

	for row, u := range ordered {
		if len(u.Continuous) != len(def.Continuous) ||
			len(u.Vegetation) != len(def.Vegetation) ||
			len(u.Categories) != len(def.Categorical) {
			return nil, errors.Errorf("unit %d does not match definition shape", u.ID)
		}
		ids[row] = u.ID

		for i, f := range def.Continuous {
			raw := u.Continuous[i]
			if raw == nil {
				stats.MissingContinuous++
			} else if f.TenthDegrees {
				c := f.Convert(*raw)
				raw = &c
			}
			r := ranges[f.Name]
			if v := NormalizeContinuous(raw, r.Min, r.Max); v != 0 {
				coo.Set(row, i, v)
			}
		}

		for i := range def.Vegetation {
			raw := u.Vegetation[i]
			if raw == nil {
				stats.MissingVegetation++
			}
			if v := NormalizeVegetationShare(raw); v != 0 {
				coo.Set(row, len(def.Continuous)+i, v)
			}
		}

		for i, f := range def.Categorical {
			id := u.Categories[i]
			if id == nil {
				stats.MissingCategory++
				continue
			}
			col, ok := catCols[i][*id]
			if !ok {
				// 查找表之外的 ID：按“无信息”降级，不中断批处理
				stats.UnmatchedCategory[f.Prefix]++
				continue
			}
			coo.Set(row, col, 1)
		}
	}

	return &BuildResult{
		Matrix:       coo,
		IDs:          ids,
		FeatureNames: def.FeatureNames(vocabs),
		Rows:         len(ordered),
		Cols:         cols,
		Stats:        stats,
	}, nil
}
