package feature

import "context"

// Unit：一个空间单元在矩阵构建时刻的只读快照
// 三个切片分别与 Definition 中同类字段一一对齐；nil 表示源表中的 NULL
type Unit struct {
	ID         int64
	Continuous []*float64
	Vegetation []*float64
	Categories []*int64
}

// Source：矩阵流水线对后端存储的全部能力要求
// 背景：替代原实现中各脚本内联的数据库连接；构建层只依赖该接口，测试用假实现注入
type Source interface {
	// FetchSpatialUnits：按标识符序返回全量空间单元快照
	FetchSpatialUnits(ctx context.Context, def Definition) ([]Unit, error)
	// FetchRanges：读取已持久化的归一化区间；第二返回值为 false 表示无缓存记录
	FetchRanges(ctx context.Context, def Definition) (RangeSet, bool, error)
	// ComputeRanges：对全量源表按字段聚合 MIN/MAX，单位换算在聚合内完成
	ComputeRanges(ctx context.Context, def Definition) (RangeSet, error)
	// FetchVocabulary：返回查找表中排好序的合法类别 ID 全集；空表返回空切片
	FetchVocabulary(ctx context.Context, f CategoricalField) ([]int64, error)
}
