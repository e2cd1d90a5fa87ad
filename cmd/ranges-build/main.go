// 批处理入口：计算并缓存归一化区间
// 背景：区间必须在训练期固定一次，推断期与 API 复用同一份；
// 已有缓存默认不覆盖，RANGES_FORCE=true 强制重算重写。
package main

import (
	"context"
	"os"
	"path/filepath"

	"edop-api/internal/feature"
	"edop-api/internal/logger"
	"edop-api/internal/store"
	"edop-api/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	logger.Setup()
	l := logger.With("ranges-build")
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

	if os.Getenv("RANGES_FORCE") != "true" {
		_, ok, err := st.FetchRanges(ctx, def)
		if err != nil {
			l.Error("ranges_check_error", "err", err)
			os.Exit(1)
		}
		if ok {
			l.Info("ranges_exist", "hint", "set RANGES_FORCE=true to recompute")
			return
		}
	}

	ranges, err := st.ComputeRanges(ctx, def)
	if err != nil {
		l.Error("ranges_compute_error", "err", err)
		os.Exit(1)
	}
	if err := ranges.Complete(def); err != nil {
		l.Error("ranges_incomplete", "err", err)
		os.Exit(1)
	}
	if err := st.SaveRanges(ctx, def, ranges); err != nil {
		l.Error("ranges_save_error", "err", err)
		os.Exit(1)
	}
	for _, f := range def.Continuous {
		r := ranges[f.Name]
		if r.Min == nil || r.Max == nil {
			l.Warn("range_all_null", "field", f.Name)
			continue
		}
		l.Debug("range", "field", f.Name, "min", *r.Min, "max", *r.Max)
	}
	l.Info("ranges_build_done", "fields", len(def.Continuous), "fingerprint", def.Fingerprint()[:12])
}
