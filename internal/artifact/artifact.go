// 包 artifact：矩阵产物三件套的落盘与回读
// 背景：稀疏矩阵（Matrix Market 坐标格式）、行序标识符数组（JSON）、列序特征名（JSON）
// 构成完整的自描述输出契约；任何下游消费方必须三件同读，缺一即丢失行列对应。
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/james-bowman/sparse"
	"github.com/pkg/errors"
)

const mmHeader = "%%MatrixMarket matrix coordinate real general"

// WriteMatrixMarket：按坐标格式写出稀疏矩阵，条目索引 1 基
func WriteMatrixMarket(path string, m *sparse.COO) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating matrix file")
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	r, c := m.Dims()
	if _, err := fmt.Fprintf(w, "%s\n%d %d %d\n", mmHeader, r, c, m.NNZ()); err != nil {
		return errors.Wrap(err, "writing matrix header")
	}
	var werr error
	m.DoNonZero(func(i, j int, v float64) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, "%d %d %.9g\n", i+1, j+1, v)
	})
	if werr != nil {
		return errors.Wrap(werr, "writing matrix entries")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flushing matrix file")
	}
	return nil
}

// ReadMatrixMarket：回读坐标格式稀疏矩阵
// 约束：仅支持本工具链写出的 coordinate real general 变体；带 % 的注释行跳过
func ReadMatrixMarket(path string) (*sparse.COO, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening matrix file")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	if !sc.Scan() {
		return nil, errors.New("empty matrix file")
	}
	header := strings.TrimSpace(sc.Text())
	if !strings.HasPrefix(header, "%%MatrixMarket") {
		return nil, errors.Errorf("not a MatrixMarket file: %q", header)
	}
	if !strings.Contains(header, "coordinate") || !strings.Contains(header, "real") || !strings.Contains(header, "general") {
		return nil, errors.Errorf("unsupported MatrixMarket variant: %q", header)
	}

	var rows, cols, nnz int
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if _, err := fmt.Sscanf(line, "%d %d %d", &rows, &cols, &nnz); err != nil {
			return nil, errors.Wrapf(err, "parsing size line %q", line)
		}
		break
	}
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("invalid matrix dimensions %dx%d", rows, cols)
	}

	ri := make([]int, 0, nnz)
	ci := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, errors.Errorf("malformed entry %q", line)
		}
		i, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, "entry row %q", line)
		}
		j, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, errors.Wrapf(err, "entry col %q", line)
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "entry value %q", line)
		}
		if i < 1 || i > rows || j < 1 || j > cols {
			return nil, errors.Errorf("entry %q out of bounds for %dx%d", line, rows, cols)
		}
		ri = append(ri, i-1)
		ci = append(ci, j-1)
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading matrix file")
	}
	if len(data) != nnz {
		return nil, errors.Errorf("entry count %d does not match declared nnz %d", len(data), nnz)
	}
	return sparse.NewCOO(rows, cols, ri, ci, data), nil
}

// WriteJSON：带缩进写出 JSON 产物（特征名、标识符数组、方差摘要等）
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	return nil
}

// ReadJSON：回读 JSON 产物
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

// Triple：三件套的文件路径约定
type Triple struct {
	Matrix       string
	IDs          string
	FeatureNames string
}

// Paths：根据输出目录与前缀生成三件套路径
func Paths(dir, prefix string) Triple {
	return Triple{
		Matrix:       dir + "/" + prefix + "_matrix.mtx",
		IDs:          dir + "/" + prefix + "_basin_ids.json",
		FeatureNames: dir + "/" + prefix + "_feature_names.json",
	}
}

// LoadTriple：整体回读三件套并做行列一致性校验
func LoadTriple(tp Triple) (*sparse.COO, []int64, []string, error) {
	m, err := ReadMatrixMarket(tp.Matrix)
	if err != nil {
		return nil, nil, nil, err
	}
	var ids []int64
	if err := ReadJSON(tp.IDs, &ids); err != nil {
		return nil, nil, nil, err
	}
	var names []string
	if err := ReadJSON(tp.FeatureNames, &names); err != nil {
		return nil, nil, nil, err
	}
	r, c := m.Dims()
	if len(ids) != r {
		return nil, nil, nil, errors.Errorf("id array length %d does not match matrix rows %d", len(ids), r)
	}
	if len(names) != c {
		return nil, nil, nil, errors.Errorf("feature name count %d does not match matrix cols %d", len(names), c)
	}
	return m, ids, names, nil
}
