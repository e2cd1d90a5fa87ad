package feature

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// Vocabularies：类别前缀 → 排好序的合法 ID 全集
// 背景：词表序决定 one-hot 列位；取自查找表而非观测值，保证矩阵宽度不随数据增减漂移
type Vocabularies map[string][]int64

// Total：全部词表的列数合计
func (v Vocabularies) Total() int {
	n := 0
	for _, ids := range v {
		n += len(ids)
	}
	return n
}

// LoadVocabularies：逐字段读取查找表词表
// 约束：空查找表是合法的（该字段贡献零列）；即使存储端已排序，这里仍兜底重排，列位不能依赖库端行为
func LoadVocabularies(ctx context.Context, src Source, def Definition) (Vocabularies, error) {
	out := make(Vocabularies, len(def.Categorical))
	for _, f := range def.Categorical {
		ids, err := src.FetchVocabulary(ctx, f)
		if err != nil {
			return nil, errors.Wrapf(err, "vocabulary for %q", f.Prefix)
		}
		sorted := append([]int64(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out[f.Prefix] = sorted
	}
	return out, nil
}
