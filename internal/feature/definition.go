// 包 feature：环境特征矩阵的核心变换层——特征定义、归一化区间、类别词表与稀疏矩阵构建。
// 背景：矩阵列布局一经确定即作为训练/推断两侧的共同契约，字段顺序不可在运行间漂移；
// 所有 I/O 由调用方通过 Source 接口注入，本包保持纯变换便于用假实现测试。
package feature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContinuousField：连续字段定义
// TenthDegrees 表示源列以 0.1°C 存储（HydroATLAS 温度编码），换算需在取 min/max 之前完成
type ContinuousField struct {
	Column       string
	Name         string
	TenthDegrees bool
}

// Convert：对原始值应用单位换算；区间计算与矩阵构建两侧必须走同一入口
func (f ContinuousField) Convert(v float64) float64 {
	if f.TenthDegrees {
		return v / 10.0
	}
	return v
}

// VegetationField：潜在自然植被占比字段，源值为 0-100 百分比
type VegetationField struct {
	Column string
	Name   string
}

// CategoricalField：类别字段定义
// 词表取自 LookupTable 的 IDColumn 全集（合法类别枚举），而非观测值去重
type CategoricalField struct {
	Column      string
	Prefix      string
	IDColumn    string
	LookupTable string
}

// Definition：矩阵布局的唯一事实来源，构造后只读
// 约束：三组字段各自的顺序决定输出矩阵列位；仅在环境 schema 变更时整体换版
type Definition struct {
	Table       string
	IDColumn    string
	Continuous  []ContinuousField
	Vegetation  []VegetationField
	Categorical []CategoricalField
}

// DenseWidth：稠密块宽度（连续 + 植被）
func (d Definition) DenseWidth() int {
	return len(d.Continuous) + len(d.Vegetation)
}

// FeatureCount：给定词表下的总列数
func (d Definition) FeatureCount(vocabs Vocabularies) int {
	n := d.DenseWidth()
	for _, f := range d.Categorical {
		n += len(vocabs[f.Prefix])
	}
	return n
}

// FeatureNames：按矩阵列序生成特征名，随矩阵一并落盘供下游解释
func (d Definition) FeatureNames(vocabs Vocabularies) []string {
	names := make([]string, 0, d.FeatureCount(vocabs))
	for _, f := range d.Continuous {
		names = append(names, "n_"+f.Name)
	}
	for _, f := range d.Vegetation {
		names = append(names, f.Name)
	}
	for _, f := range d.Categorical {
		for _, id := range vocabs[f.Prefix] {
			names = append(names, fmt.Sprintf("cat_%s_%d", f.Prefix, id))
		}
	}
	return names
}

// Fingerprint：对有序字段名做 sha256，作为布局版本号
// 背景：缓存区间记录携带该指纹，布局变更后旧区间自动失效而不是被悄悄复用
func (d Definition) Fingerprint() string {
	var b strings.Builder
	for _, f := range d.Continuous {
		b.WriteString("n:")
		b.WriteString(f.Name)
		if f.TenthDegrees {
			b.WriteString("/10")
		}
		b.WriteByte(';')
	}
	for _, f := range d.Vegetation {
		b.WriteString("v:")
		b.WriteString(f.Name)
		b.WriteByte(';')
	}
	for _, f := range d.Categorical {
		b.WriteString("c:")
		b.WriteString(f.Prefix)
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Validate：启动期配置自检；字段名冲突属于配置错误，立即失败而不是静默跳过
func (d Definition) Validate() error {
	if d.Table == "" || d.IDColumn == "" {
		return fmt.Errorf("definition missing table or id column")
	}
	seen := map[string]bool{}
	for _, f := range d.Continuous {
		if f.Column == "" || f.Name == "" {
			return fmt.Errorf("continuous field with empty column or name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range d.Vegetation {
		if f.Column == "" || f.Name == "" {
			return fmt.Errorf("vegetation field with empty column or name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range d.Categorical {
		if f.Column == "" || f.Prefix == "" || f.IDColumn == "" || f.LookupTable == "" {
			return fmt.Errorf("categorical field %q incomplete", f.Prefix)
		}
		if seen[f.Prefix] {
			return fmt.Errorf("duplicate categorical prefix %q", f.Prefix)
		}
		seen[f.Prefix] = true
	}
	return nil
}

// BasinDefinition：basin08（HydroATLAS level 08）矩阵定义
// 与 WH 试点矩阵使用同一套字段，保证两侧特征空间一致
func BasinDefinition() Definition {
	veg := make([]VegetationField, 0, 15)
	for i := 1; i <= 15; i++ {
		veg = append(veg, VegetationField{
			Column: fmt.Sprintf("pnv_pc_s%02d", i),
			Name:   fmt.Sprintf("pnv_%02d", i),
		})
	}
	return Definition{
		Table:    "basin08",
		IDColumn: "hybas_id",
		Continuous: []ContinuousField{
			// A：基岩地貌
			{Column: "ele_mt_smn", Name: "elev_min"},
			{Column: "ele_mt_smx", Name: "elev_max"},
			{Column: "slp_dg_sav", Name: "slope_avg"},
			{Column: "slp_dg_uav", Name: "slope_upstream"},
			{Column: "sgr_dk_sav", Name: "stream_gradient"},
			{Column: "kar_pc_sse", Name: "karst"},
			{Column: "kar_pc_use", Name: "karst_upstream"},
			// B：水文气候基线
			{Column: "dis_m3_pyr", Name: "discharge_yr"},
			{Column: "dis_m3_pmn", Name: "discharge_min"},
			{Column: "dis_m3_pmx", Name: "discharge_max"},
			{Column: "ria_ha_ssu", Name: "river_area"},
			{Column: "ria_ha_usu", Name: "river_area_upstream"},
			{Column: "run_mm_syr", Name: "runoff"},
			{Column: "gwt_cm_sav", Name: "gw_table_depth"},
			{Column: "cly_pc_sav", Name: "pct_clay"},
			{Column: "slt_pc_sav", Name: "pct_silt"},
			{Column: "snd_pc_sav", Name: "pct_sand"},
			// C：生物气候代理
			{Column: "tmp_dc_syr", Name: "temp_yr", TenthDegrees: true},
			{Column: "tmp_dc_smn", Name: "temp_min", TenthDegrees: true},
			{Column: "tmp_dc_smx", Name: "temp_max", TenthDegrees: true},
			{Column: "pre_mm_syr", Name: "precip_yr"},
			{Column: "ari_ix_sav", Name: "aridity"},
			{Column: "wet_pc_sg1", Name: "wet_pct_grp1"},
			{Column: "wet_pc_sg2", Name: "wet_pct_grp2"},
			{Column: "prm_pc_sse", Name: "permafrost_extent"},
			// D：人类世标记
			{Column: "rev_mc_usu", Name: "reservoir_vol"},
			{Column: "crp_pc_sse", Name: "cropland_extent"},
			{Column: "ppd_pk_sav", Name: "pop_density"},
			{Column: "hft_ix_s09", Name: "human_footprint_09"},
			{Column: "gdp_ud_sav", Name: "gdp_avg"},
			{Column: "hdi_ix_sav", Name: "human_dev_idx"},
		},
		Vegetation: veg,
		Categorical: []CategoricalField{
			{Column: "tec_cl_smj", Prefix: "tec", IDColumn: "eco_id", LookupTable: "lu_tec"},
			{Column: "fec_cl_smj", Prefix: "fec", IDColumn: "eco_id", LookupTable: "lu_fec"},
			{Column: "cls_cl_smj", Prefix: "cls", IDColumn: "gens_id", LookupTable: "lu_cls"},
			{Column: "glc_cl_smj", Prefix: "glc", IDColumn: "glc_id", LookupTable: "lu_glc"},
			{Column: "clz_cl_smj", Prefix: "clz", IDColumn: "genz_id", LookupTable: "lu_clz"},
			{Column: "lit_cl_smj", Prefix: "lit", IDColumn: "glim_id", LookupTable: "lu_lit"},
			{Column: "tbi_cl_smj", Prefix: "tbi", IDColumn: "biome_id", LookupTable: "lu_tbi"},
			{Column: "fmh_cl_smj", Prefix: "fmh", IDColumn: "mht_id", LookupTable: "lu_fmh"},
			{Column: "wet_cl_smj", Prefix: "wet", IDColumn: "glwd_id", LookupTable: "lu_wet"},
		},
	}
}
