package feature

import (
	"context"

	"github.com/pkg/errors"
)

// Range：单个连续字段的全局归一化区间；指针为 nil 表示源表该列全为 NULL
type Range struct {
	Min *float64
	Max *float64
}

// RangeSet：字段展示名 → 区间
type RangeSet map[string]Range

// RangeOrigin：区间来源，流水线启动时一次性确定，运行中不再改判
type RangeOrigin int

const (
	RangeOriginCached RangeOrigin = iota + 1
	RangeOriginComputed
)

func (o RangeOrigin) String() string {
	switch o {
	case RangeOriginCached:
		return "cached"
	case RangeOriginComputed:
		return "computed"
	}
	return "unknown"
}

// RangeSource：显式的二态区间来源
type RangeSource struct {
	Origin RangeOrigin
	Ranges RangeSet
}

// Complete：校验每个连续字段都有区间且 min<=max
// 背景：缺字段属于配置错误，必须在构建前失败；静默跳过会让矩阵悄悄错位
func (rs RangeSet) Complete(def Definition) error {
	for _, f := range def.Continuous {
		r, ok := rs[f.Name]
		if !ok {
			return errors.Errorf("range set missing field %q", f.Name)
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return errors.Errorf("field %q has min %v > max %v", f.Name, *r.Min, *r.Max)
		}
	}
	return nil
}

// ResolveRanges：缓存命中则原样采用，未命中则对全量源表现算
// 约束：存储不可达时立即失败，绝不以默认区间续跑——错的矩阵比没有矩阵更糟
func ResolveRanges(ctx context.Context, src Source, def Definition) (RangeSource, error) {
	rs, ok, err := src.FetchRanges(ctx, def)
	if err != nil {
		return RangeSource{}, errors.Wrap(err, "fetching cached ranges")
	}
	if ok {
		if err := rs.Complete(def); err != nil {
			return RangeSource{}, errors.Wrap(err, "cached range set")
		}
		return RangeSource{Origin: RangeOriginCached, Ranges: rs}, nil
	}
	rs, err = src.ComputeRanges(ctx, def)
	if err != nil {
		return RangeSource{}, errors.Wrap(err, "computing ranges")
	}
	if err := rs.Complete(def); err != nil {
		return RangeSource{}, errors.Wrap(err, "computed range set")
	}
	return RangeSource{Origin: RangeOriginComputed, Ranges: rs}, nil
}
