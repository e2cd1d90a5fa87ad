// 批处理入口：加载人工聚类标签与（可选）聚类归属
// 背景：聚类编号→人工标签的 JSON 由分析侧维护；归属 CSV 来自外部聚类工序的输出。
package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"edop-api/internal/artifact"
	"edop-api/internal/logger"
	"edop-api/internal/migrate"
	"edop-api/internal/store"
	"edop-api/internal/utils"

	"github.com/joho/godotenv"
)

// 标签文件结构：{"clusters": {"0": {"label": "..."}, ...}}
type labelFile struct {
	Clusters map[string]struct {
		Label string `json:"label"`
	} `json:"clusters"`
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	logger.Setup()
	l := logger.With("cluster-load")
	ctx := context.Background()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	labelsPath := os.Getenv("CLUSTER_LABELS_JSON")
	if labelsPath == "" {
		labelsPath = filepath.Join("output", "basin08_cluster_labels_manual.json")
	}
	var lf labelFile
	if err := artifact.ReadJSON(labelsPath, &lf); err != nil {
		l.Error("labels_read_error", "path", labelsPath, "err", err)
		os.Exit(1)
	}
	labels := make(map[int]string, len(lf.Clusters))
	for k, v := range lf.Clusters {
		id, err := strconv.Atoi(k)
		if err != nil {
			l.Error("labels_bad_cluster_id", "key", k)
			os.Exit(1)
		}
		labels[id] = v.Label
	}
	if err := st.ReplaceClusterLabels(ctx, labels); err != nil {
		l.Error("labels_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("labels_loaded", "count", len(labels), "path", labelsPath)

	assignPath := os.Getenv("CLUSTER_ASSIGNMENTS_CSV")
	if assignPath == "" {
		l.Info("assignments_skipped", "reason", "no_csv_configured")
		return
	}
	pairs, err := readAssignments(assignPath)
	if err != nil {
		l.Error("assignments_read_error", "path", assignPath, "err", err)
		os.Exit(1)
	}
	if err := st.UpsertClusterAssignments(ctx, pairs); err != nil {
		l.Error("assignments_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("assignments_loaded", "count", len(pairs), "path", assignPath)
}

// readAssignments：读取 basin_id,cluster_id 两列 CSV，首行表头
func readAssignments(path string) ([]store.ClusterAssignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		return nil, err
	}
	var pairs []store.ClusterAssignment
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		basinID, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, err
		}
		clusterID, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, store.ClusterAssignment{BasinID: basinID, ClusterID: clusterID})
	}
	return pairs, nil
}
