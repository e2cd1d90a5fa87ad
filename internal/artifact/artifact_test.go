package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/james-bowman/sparse"
)

func TestMatrixMarketRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.mtx")

	m := sparse.NewCOO(3, 4, nil, nil, nil)
	m.Set(0, 0, 0.5)
	m.Set(1, 2, 1)
	m.Set(2, 3, -0.25)

	if err := WriteMatrixMarket(path, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMatrixMarket(path)
	if err != nil {
		t.Fatal(err)
	}
	r, c := got.Dims()
	if r != 3 || c != 4 {
		t.Fatalf("dims = %dx%d, want 3x4", r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if got.At(i, j) != m.At(i, j) {
				t.Fatalf("at(%d,%d) = %v, want %v", i, j, got.At(i, j), m.At(i, j))
			}
		}
	}
}

func TestReadMatrixMarketRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.mtx")
	if err := os.WriteFile(path, []byte("hello world\n1 1 1\n1 1 2.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMatrixMarket(path); err == nil {
		t.Fatal("expected header rejection")
	}
}

func TestReadMatrixMarketChecksNNZ(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.mtx")
	content := "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1.0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMatrixMarket(path); err == nil {
		t.Fatal("expected nnz mismatch error")
	}
}

func TestLoadTripleValidatesShape(t *testing.T) {
	dir := t.TempDir()
	tp := Paths(dir, "test")

	m := sparse.NewCOO(2, 3, nil, nil, nil)
	m.Set(0, 1, 1)
	if err := WriteMatrixMarket(tp.Matrix, m); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(tp.IDs, []int64{100, 200}); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(tp.FeatureNames, []string{"n_a", "n_b", "cat_x_1"}); err != nil {
		t.Fatal(err)
	}

	_, ids, names, err := LoadTriple(tp)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 100 || ids[1] != 200 {
		t.Fatalf("ids = %v", ids)
	}
	if len(names) != 3 {
		t.Fatalf("names = %v", names)
	}

	// 标识符数组与矩阵行数不一致时必须整体拒绝
	if err := WriteJSON(tp.IDs, []int64{100}); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := LoadTriple(tp); err == nil {
		t.Fatal("expected row/id mismatch error")
	}
}
