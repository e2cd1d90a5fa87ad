// 批处理入口：对矩阵三件套做降维并写出坐标/方差/载荷产物
// 背景：坐标 CSV 的行序沿用三件套的标识符序，聚类工序直接按行对齐消费。
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"edop-api/internal/artifact"
	"edop-api/internal/logger"
	"edop-api/internal/pca"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	logger.Setup()
	l := logger.With("pca-run")

	outDir := os.Getenv("OUT_DIR")
	if outDir == "" {
		outDir = "output"
	}
	prefix := os.Getenv("MATRIX_PREFIX")
	if prefix == "" {
		prefix = "basin08"
	}
	target := 0.90
	if s := os.Getenv("PCA_TARGET_VARIANCE"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			target = v
		}
	}
	maxComp := 150
	if s := os.Getenv("PCA_MAX_COMPONENTS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			maxComp = n
		}
	}

	tp := artifact.Paths(outDir, prefix)
	m, ids, names, err := artifact.LoadTriple(tp)
	if err != nil {
		l.Error("triple_load_error", "err", err)
		os.Exit(1)
	}
	rows, cols := m.Dims()
	l.Info("triple_loaded", "rows", rows, "cols", cols, "nnz", m.NNZ())

	res, err := pca.Run(m.ToCSR(), target, maxComp)
	if err != nil {
		l.Error("pca_error", "err", err)
		os.Exit(1)
	}
	if !res.TargetReached {
		l.Warn("pca_target_not_reached",
			"target", target, "explained", res.TotalExplained, "components", res.NComponents)
	}
	l.Info("pca_done", "components", res.NComponents, "explained", res.TotalExplained)

	coordsPath := filepath.Join(outDir, prefix+"_pca_coords.csv")
	if err := writeCoords(coordsPath, ids, res); err != nil {
		l.Error("coords_write_error", "err", err)
		os.Exit(1)
	}
	if err := artifact.WriteJSON(filepath.Join(outDir, prefix+"_pca_variance.json"), res.Components); err != nil {
		l.Error("variance_write_error", "err", err)
		os.Exit(1)
	}
	loadingsPath := filepath.Join(outDir, prefix+"_pca_loadings.csv")
	if err := writeLoadings(loadingsPath, names, res); err != nil {
		l.Error("loadings_write_error", "err", err)
		os.Exit(1)
	}

	// 头几个成分的主导特征，快速人工体检用
	nShow := 5
	if nShow > res.NComponents {
		nShow = res.NComponents
	}
	for c := 0; c < nShow; c++ {
		top := pca.TopLoadings(res, c, 5)
		attrs := []any{"component", c + 1}
		for rank, idx := range top {
			attrs = append(attrs, fmt.Sprintf("top%d", rank+1),
				fmt.Sprintf("%s=%.3f", names[idx], res.Loadings.At(c, idx)))
		}
		l.Info("pca_top_loadings", attrs...)
	}
}

func writeCoords(path string, ids []int64, res *pca.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := make([]string, 0, res.NComponents+1)
	header = append(header, "basin_id")
	for j := 0; j < res.NComponents; j++ {
		header = append(header, fmt.Sprintf("pc%d", j+1))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, res.NComponents+1)
	for i, id := range ids {
		rec[0] = strconv.FormatInt(id, 10)
		for j := 0; j < res.NComponents; j++ {
			rec[j+1] = strconv.FormatFloat(res.Coords.At(i, j), 'g', 9, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeLoadings(path string, names []string, res *pca.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := make([]string, 0, len(names)+1)
	header = append(header, "component")
	header = append(header, names...)
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(names)+1)
	for c := 0; c < res.NComponents; c++ {
		rec[0] = strconv.Itoa(c + 1)
		for j := range names {
			rec[j+1] = strconv.FormatFloat(res.Loadings.At(c, j), 'g', 9, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
