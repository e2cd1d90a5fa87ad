// 包 store：PostgreSQL/PostGIS 数据访问层
// 背景：实现 feature.Source 能力集（单元快照、归一化区间、类别词表），并承载
// API 侧的签名点查与聚类标签读写；替代原实现里各脚本内联的数据库连接。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	"edop-api/internal/feature"
	"edop-api/internal/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sqlx.DB
}

func AttachDB(db *sqlx.DB) *Store { return &Store{db: db} }

// Open：使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sqlx.DB { return s.db }

// unitQuery：单元快照查询，列序 = 标识符 + 连续 + 植被 + 类别（与 Definition 对齐）
// 约束：ORDER BY 标识符——行序契约的第一道保障，Build 侧还会再排一次
func unitQuery(def feature.Definition) string {
	cols := make([]string, 0, 1+len(def.Continuous)+len(def.Vegetation)+len(def.Categorical))
	cols = append(cols, def.IDColumn)
	for _, f := range def.Continuous {
		cols = append(cols, f.Column)
	}
	for _, f := range def.Vegetation {
		cols = append(cols, f.Column)
	}
	for _, f := range def.Categorical {
		cols = append(cols, f.Column)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + def.Table + " ORDER BY " + def.IDColumn
}

// FetchSpatialUnits：按标识符序取全量空间单元快照
// 背景：列不存在等配置错误在这里第一时间暴露（SQL 报错），不会静默跳字段
func (s *Store) FetchSpatialUnits(ctx context.Context, def feature.Definition) ([]feature.Unit, error) {
	rows, err := s.db.QueryxContext(ctx, unitQuery(def))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", def.Table, err)
	}
	defer rows.Close()

	nc, nv, nk := len(def.Continuous), len(def.Vegetation), len(def.Categorical)
	var units []feature.Unit
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", def.Table, err)
		}
		id, ok := toInt64(vals[0])
		if !ok {
			return nil, fmt.Errorf("row in %s has non-integer %s: %v", def.Table, def.IDColumn, vals[0])
		}
		u := feature.Unit{
			ID:         id,
			Continuous: make([]*float64, nc),
			Vegetation: make([]*float64, nv),
			Categories: make([]*int64, nk),
		}
		for i := 0; i < nc; i++ {
			u.Continuous[i] = toFloat64(vals[1+i])
		}
		for i := 0; i < nv; i++ {
			u.Vegetation[i] = toFloat64(vals[1+nc+i])
		}
		for i := 0; i < nk; i++ {
			if v, ok := toInt64(vals[1+nc+nv+i]); ok {
				u.Categories[i] = &v
			}
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", def.Table, err)
	}
	logger.L().Debug("units_fetched", "table", def.Table, "count", len(units))
	return units, nil
}

// FetchVocabulary：查找表 ID 全集，升序
func (s *Store) FetchVocabulary(ctx context.Context, f feature.CategoricalField) ([]int64, error) {
	q := "SELECT DISTINCT " + f.IDColumn + " FROM " + f.LookupTable + " ORDER BY " + f.IDColumn
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("querying %s: %w", f.LookupTable, err)
	}
	return ids, nil
}

// ClusterInfo：聚类标签与规模摘要
type ClusterInfo struct {
	ClusterID int    `db:"cluster_id" json:"cluster_id"`
	Label     string `db:"label" json:"label"`
	Basins    int64  `db:"basins" json:"basins"`
}

// ClusterSummary：全部聚类的标签与流域数量，按 cluster_id 升序
func (s *Store) ClusterSummary(ctx context.Context) ([]ClusterInfo, error) {
	out := []ClusterInfo{}
	err := s.db.SelectContext(ctx, &out, `
        SELECT l.cluster_id, l.label, COUNT(c.basin_id) AS basins
        FROM basin_cluster_labels l
        LEFT JOIN basin_clusters c ON c.cluster_id = l.cluster_id
        GROUP BY l.cluster_id, l.label
        ORDER BY l.cluster_id`)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceClusterLabels：整表替换人工标签（重聚类后全量同步）
func (s *Store) ReplaceClusterLabels(ctx context.Context, labels map[int]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM basin_cluster_labels"); err != nil {
		return err
	}
	ids := make([]int, 0, len(labels))
	for id := range labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO basin_cluster_labels(cluster_id, label) VALUES($1, $2)", id, labels[id]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClusterAssignment：单元 → 聚类编号
type ClusterAssignment struct {
	BasinID   int64
	ClusterID int
}

// UpsertClusterAssignments：分批写回聚类归属
func (s *Store) UpsertClusterAssignments(ctx context.Context, pairs []ClusterAssignment) error {
	const batch = 500
	for start := 0; start < len(pairs); start += batch {
		end := start + batch
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk := pairs[start:end]
		var sb strings.Builder
		sb.WriteString("INSERT INTO basin_clusters(basin_id, cluster_id) VALUES ")
		args := make([]interface{}, 0, len(chunk)*2)
		for i, p := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, p.BasinID, p.ClusterID)
		}
		sb.WriteString(" ON CONFLICT (basin_id) DO UPDATE SET cluster_id = EXCLUDED.cluster_id, updated_at = now()")
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("upserting assignments: %w", err)
		}
	}
	return nil
}

// Signature：一个流域的环境签名，API 对外返回结构
type Signature struct {
	BasinID      int64              `json:"basin_id"`
	ClusterID    *int               `json:"cluster_id,omitempty"`
	ClusterLabel string             `json:"cluster_label,omitempty"`
	Fields       map[string]float64 `json:"fields"`
}

func geomColumn() string {
	if v := os.Getenv("BASIN_GEOM_COLUMN"); v != "" {
		return v
	}
	return "geom"
}

// SignatureByPoint：返回覆盖该坐标点的流域签名；无流域覆盖时返回 (nil, nil)
// 背景：归一化用与矩阵构建完全相同的区间与换算，保证 API 读数与离线矩阵一致
func (s *Store) SignatureByPoint(ctx context.Context, def feature.Definition, ranges feature.RangeSet, lat, lon float64) (*Signature, error) {
	cols := make([]string, 0, 1+len(def.Continuous))
	cols = append(cols, def.IDColumn)
	for _, f := range def.Continuous {
		cols = append(cols, f.Column)
	}
	q := "SELECT " + strings.Join(cols, ", ") + " FROM " + def.Table +
		" WHERE ST_Contains(" + geomColumn() + ", ST_SetSRID(ST_MakePoint($1, $2), 4326)) LIMIT 1"
	row := s.db.QueryRowxContext(ctx, q, lon, lat)
	vals, err := row.SliceScan()
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("signature lookup: %w", err)
	}
	id, ok := toInt64(vals[0])
	if !ok {
		return nil, fmt.Errorf("basin row has non-integer %s", def.IDColumn)
	}
	sig := &Signature{BasinID: id, Fields: make(map[string]float64, len(def.Continuous))}
	for i, f := range def.Continuous {
		raw := toFloat64(vals[1+i])
		if raw != nil && f.TenthDegrees {
			c := f.Convert(*raw)
			raw = &c
		}
		r := ranges[f.Name]
		sig.Fields[f.Name] = feature.NormalizeContinuous(raw, r.Min, r.Max)
	}

	var clusterID int
	var label sql.NullString
	err = s.db.QueryRowxContext(ctx, `
        SELECT c.cluster_id, l.label
        FROM basin_clusters c
        LEFT JOIN basin_cluster_labels l ON l.cluster_id = c.cluster_id
        WHERE c.basin_id = $1`, id).Scan(&clusterID, &label)
	if err == nil {
		sig.ClusterID = &clusterID
		if label.Valid {
			sig.ClusterLabel = label.String
		}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("cluster lookup: %w", err)
	}
	return sig, nil
}
