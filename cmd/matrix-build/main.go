// 批处理入口：构建流域特征矩阵三件套并落盘
// 背景：全流程 = 解析区间（缓存优先）→ 加载词表 → 拉取单元快照 → 变换 → 写产物；
// 任何一步失败都整体退出，不产出半套文件。
package main

import (
	"context"
	"os"
	"path/filepath"

	"edop-api/internal/artifact"
	"edop-api/internal/feature"
	"edop-api/internal/logger"
	"edop-api/internal/metrics"
	"edop-api/internal/store"
	"edop-api/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	logger.Setup()
	l := logger.With("matrix-build")
	ctx := context.Background()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.AttachDB(db)

	def := feature.BasinDefinition()
	if t := os.Getenv("BASIN_TABLE"); t != "" {
		def.Table = t
	}
	if err := def.Validate(); err != nil {
		l.Error("definition_invalid", "err", err)
		os.Exit(1)
	}
	l.Info("definition_ok", "table", def.Table,
		"continuous", len(def.Continuous), "vegetation", len(def.Vegetation), "categorical", len(def.Categorical))

	rs, err := feature.ResolveRanges(ctx, st, def)
	if err != nil {
		l.Error("ranges_resolve_error", "err", err)
		os.Exit(1)
	}
	l.Info("ranges_resolved", "origin", rs.Origin.String(), "fields", len(rs.Ranges))
	if rs.Origin == feature.RangeOriginComputed {
		if err := st.SaveRanges(ctx, def, rs.Ranges); err != nil {
			l.Error("ranges_save_error", "err", err)
			os.Exit(1)
		}
	}

	vocabs, err := feature.LoadVocabularies(ctx, st, def)
	if err != nil {
		l.Error("vocab_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("vocab_loaded", "fields", len(vocabs), "total_categories", vocabs.Total())

	units, err := st.FetchSpatialUnits(ctx, def)
	if err != nil {
		l.Error("units_fetch_error", "err", err)
		os.Exit(1)
	}
	if len(units) == 0 {
		l.Error("units_empty", "table", def.Table)
		os.Exit(1)
	}
	l.Info("units_fetched", "count", len(units))

	res, err := feature.Build(def, rs.Ranges, vocabs, units)
	if err != nil {
		l.Error("build_error", "err", err)
		os.Exit(1)
	}
	metrics.MatrixRowsTotal.Add(float64(res.Rows))
	metrics.ContinuousMissingTotal.Add(float64(res.Stats.MissingContinuous))
	metrics.VegetationMissingTotal.Add(float64(res.Stats.MissingVegetation))
	metrics.CategoryMissingTotal.Add(float64(res.Stats.MissingCategory))
	for field, n := range res.Stats.UnmatchedCategory {
		metrics.CategoricalUnmatchedTotal.WithLabelValues(field).Add(float64(n))
		l.Warn("categorical_unmatched", "field", field, "count", n)
	}

	outDir := os.Getenv("OUT_DIR")
	if outDir == "" {
		outDir = "output"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		l.Error("out_dir_error", "dir", outDir, "err", err)
		os.Exit(1)
	}
	prefix := os.Getenv("MATRIX_PREFIX")
	if prefix == "" {
		prefix = "basin08"
	}
	tp := artifact.Paths(outDir, prefix)
	if err := artifact.WriteMatrixMarket(tp.Matrix, res.Matrix); err != nil {
		l.Error("matrix_write_error", "err", err)
		os.Exit(1)
	}
	if err := artifact.WriteJSON(tp.IDs, res.IDs); err != nil {
		l.Error("ids_write_error", "err", err)
		os.Exit(1)
	}
	if err := artifact.WriteJSON(tp.FeatureNames, res.FeatureNames); err != nil {
		l.Error("names_write_error", "err", err)
		os.Exit(1)
	}

	l.Info("matrix_build_done",
		"rows", res.Rows,
		"cols", res.Cols,
		"nnz", res.Matrix.NNZ(),
		"missing_continuous", res.Stats.MissingContinuous,
		"missing_vegetation", res.Stats.MissingVegetation,
		"missing_category", res.Stats.MissingCategory,
		"unmatched_category", res.Stats.UnmatchedTotal(),
		"matrix", tp.Matrix,
	)
}
