package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"edop-api/internal/feature"
	"edop-api/internal/logger"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// 归一化区间缓存表：单行宽表，id=1，每个连续字段占 {name}_min/{name}_max 两列
const rangesTable = "edop_norm_ranges"

// 文档注释：42P01 = undefined_table。表不存在是合法的"无缓存"状态，
// 其余数据库错误一律视为缓存存储不可用，向上失败。
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	return false
}

// FetchRanges：读取缓存的归一化区间
// 约束：指纹不匹配说明字段定义变过而缓存没重建，必须硬失败而不是混用旧区间；
// 指纹列缺失按旧版缓存处理，告警后照常使用。
func (s *Store) FetchRanges(ctx context.Context, def feature.Definition) (feature.RangeSet, bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+rangesTable)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "checking range cache")
	}
	if n == 0 {
		return nil, false, nil
	}

	row := s.db.QueryRowxContext(ctx, "SELECT * FROM "+rangesTable+" WHERE id = 1")
	m := map[string]interface{}{}
	if err := row.MapScan(m); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading range cache")
	}

	if fp, ok := m["fingerprint"]; ok && fp != nil {
		stored := fmt.Sprintf("%s", fp)
		if b, isBytes := fp.([]byte); isBytes {
			stored = string(b)
		}
		if stored != def.Fingerprint() {
			return nil, false, errors.Errorf(
				"range cache fingerprint %.12s… does not match current definition %.12s…; rebuild ranges",
				stored, def.Fingerprint())
		}
	} else {
		logger.L().Warn("range_cache_no_fingerprint", "table", rangesTable)
	}

	ranges := make(feature.RangeSet, len(def.Continuous))
	for _, f := range def.Continuous {
		ranges[f.Name] = feature.Range{
			Min: toFloat64(m[f.Name+"_min"]),
			Max: toFloat64(m[f.Name+"_max"]),
		}
	}
	return ranges, true, nil
}

// rangeAggQuery：一条聚合 SQL 扫出全部字段的全局 MIN/MAX
// 约束：单位换算必须发生在聚合之前，否则 0.1 度口径的字段会拿到错误区间
func rangeAggQuery(def feature.Definition) string {
	exprs := make([]string, 0, len(def.Continuous)*2)
	for _, f := range def.Continuous {
		col := f.Column
		if f.TenthDegrees {
			col = "(" + col + " / 10.0)"
		}
		exprs = append(exprs,
			fmt.Sprintf("MIN(%s) AS %s_min", col, f.Name),
			fmt.Sprintf("MAX(%s) AS %s_max", col, f.Name),
		)
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + def.Table
}

// ComputeRanges：全表扫描计算每个连续字段的全局区间
func (s *Store) ComputeRanges(ctx context.Context, def feature.Definition) (feature.RangeSet, error) {
	row := s.db.QueryRowxContext(ctx, rangeAggQuery(def))
	m := map[string]interface{}{}
	if err := row.MapScan(m); err != nil {
		return nil, errors.Wrapf(err, "computing ranges over %s", def.Table)
	}
	ranges := make(feature.RangeSet, len(def.Continuous))
	for _, f := range def.Continuous {
		ranges[f.Name] = feature.Range{
			Min: toFloat64(m[f.Name+"_min"]),
			Max: toFloat64(m[f.Name+"_max"]),
		}
	}
	logger.L().Info("ranges_computed", "table", def.Table, "fields", len(ranges))
	return ranges, nil
}

// SaveRanges：建表（如缺失）并覆写 id=1 单行
func (s *Store) SaveRanges(ctx context.Context, def feature.Definition, ranges feature.RangeSet) error {
	cols := make([]string, 0, len(def.Continuous)*2)
	for _, f := range def.Continuous {
		cols = append(cols,
			f.Name+"_min DOUBLE PRECISION",
			f.Name+"_max DOUBLE PRECISION",
		)
	}
	create := "CREATE TABLE IF NOT EXISTS " + rangesTable +
		" (id INT PRIMARY KEY, fingerprint TEXT, " + strings.Join(cols, ", ") + ")"
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return errors.Wrap(err, "creating range cache table")
	}

	names := []string{"id", "fingerprint"}
	args := []interface{}{1, def.Fingerprint()}
	for _, f := range def.Continuous {
		r, ok := ranges[f.Name]
		if !ok {
			return errors.Errorf("range set is missing field %q", f.Name)
		}
		names = append(names, f.Name+"_min", f.Name+"_max")
		args = append(args, r.Min, r.Max)
	}
	ph := make([]string, len(names))
	sets := make([]string, 0, len(names)-1)
	for i, c := range names {
		ph[i] = fmt.Sprintf("$%d", i+1)
		if c != "id" {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	upsert := "INSERT INTO " + rangesTable + " (" + strings.Join(names, ", ") + ") VALUES (" +
		strings.Join(ph, ", ") + ") ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
	if _, err := s.db.ExecContext(ctx, upsert, args...); err != nil {
		return errors.Wrap(err, "saving range cache")
	}
	logger.L().Info("ranges_saved", "table", rangesTable, "fields", len(def.Continuous))
	return nil
}
