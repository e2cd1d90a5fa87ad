package migrate

import (
	"edop-api/internal/logger"

	"github.com/jmoiron/sqlx"
)

// 背景：首次运行自动创建派生表与索引，保障聚类结果回写与 API 查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；源数据表（basin08 与各 lu_* 查找表）由数据导入流程负责，这里不创建
func EnsureSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS basin_clusters (
            basin_id BIGINT PRIMARY KEY,
            cluster_id INT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_basin_clusters_cluster ON basin_clusters(cluster_id)`,
		`CREATE TABLE IF NOT EXISTS basin_cluster_labels (
            cluster_id INT PRIMARY KEY,
            label TEXT NOT NULL
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
