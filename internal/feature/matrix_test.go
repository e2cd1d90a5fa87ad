package feature

import (
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func testDefinition() Definition {
	return Definition{
		Table:    "t",
		IDColumn: "id",
		Continuous: []ContinuousField{
			{Column: "c_a", Name: "a"},
			{Column: "c_b", Name: "b", TenthDegrees: true},
		},
		Vegetation: []VegetationField{
			{Column: "pnv_pc_s01", Name: "pnv_01"},
		},
		Categorical: []CategoricalField{
			{Column: "cat_x", Prefix: "x", IDColumn: "x_id", LookupTable: "lu_x"},
		},
	}
}

func TestNormalizeContinuous(t *testing.T) {
	tests := []struct {
		name string
		raw  *float64
		min  *float64
		max  *float64
		want float64
	}{
		{"nil raw", nil, fptr(0), fptr(100), 0.0},
		{"nil min", fptr(50), nil, fptr(100), 0.0},
		{"nil max", fptr(50), fptr(0), nil, 0.0},
		{"at min", fptr(0), fptr(0), fptr(100), 0.0},
		{"at max", fptr(100), fptr(0), fptr(100), 1.0},
		{"midpoint", fptr(50), fptr(0), fptr(100), 0.5},
		{"degenerate equal", fptr(42), fptr(42), fptr(42), 0.5},
		{"degenerate other value", fptr(7), fptr(42), fptr(42), 0.5},
		{"below range unclamped", fptr(-50), fptr(0), fptr(100), -0.5},
		{"above range unclamped", fptr(200), fptr(0), fptr(100), 2.0},
		{"negative range", fptr(-5), fptr(-10), fptr(0), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeContinuous(tt.raw, tt.min, tt.max)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeContinuousStrictlyInside(t *testing.T) {
	min, max := fptr(3), fptr(17)
	for _, raw := range []float64{3.001, 5, 10, 16.999} {
		v := NormalizeContinuous(fptr(raw), min, max)
		if v <= 0 || v >= 1 {
			t.Fatalf("value %v normalized to %v, want strictly inside (0,1)", raw, v)
		}
	}
}

func TestNormalizeContinuousIdempotentOnUnitRange(t *testing.T) {
	min, max := fptr(0), fptr(1)
	for _, raw := range []float64{0, 0.25, 0.5, 1} {
		once := NormalizeContinuous(fptr(raw), min, max)
		twice := NormalizeContinuous(fptr(once), min, max)
		if once != twice {
			t.Fatalf("not idempotent for %v: %v != %v", raw, once, twice)
		}
	}
}

func TestNormalizeVegetationShare(t *testing.T) {
	if got := NormalizeVegetationShare(nil); got != 0.0 {
		t.Fatalf("nil: got %v", got)
	}
	if got := NormalizeVegetationShare(fptr(0)); got != 0.0 {
		t.Fatalf("0: got %v", got)
	}
	if got := NormalizeVegetationShare(fptr(100)); got != 1.0 {
		t.Fatalf("100: got %v", got)
	}
	if got := NormalizeVegetationShare(fptr(25)); got != 0.25 {
		t.Fatalf("25: got %v", got)
	}
}

func TestBuildContinuousColumn(t *testing.T) {
	def := Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "c_a", Name: "a"}},
	}
	ranges := RangeSet{"a": {Min: fptr(0), Max: fptr(100)}}
	units := []Unit{
		{ID: 1, Continuous: []*float64{fptr(0)}, Vegetation: nil, Categories: nil},
		{ID: 2, Continuous: []*float64{fptr(50)}},
		{ID: 3, Continuous: []*float64{nil}},
	}
	res, err := Build(def, ranges, Vocabularies{}, units)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.0, 0.5, 0.0}
	for i, w := range want {
		if got := res.Matrix.At(i, 0); got != w {
			t.Fatalf("row %d: got %v, want %v", i, got, w)
		}
	}
	if res.Stats.MissingContinuous != 1 {
		t.Fatalf("missing continuous count = %d, want 1", res.Stats.MissingContinuous)
	}
}

func TestBuildDegenerateRange(t *testing.T) {
	def := Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "c_a", Name: "a"}},
	}
	ranges := RangeSet{"a": {Min: fptr(42), Max: fptr(42)}}
	units := []Unit{
		{ID: 1, Continuous: []*float64{fptr(42)}},
		{ID: 2, Continuous: []*float64{fptr(0)}},
		{ID: 3, Continuous: []*float64{fptr(100)}},
	}
	res, err := Build(def, ranges, Vocabularies{}, units)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if got := res.Matrix.At(i, 0); got != 0.5 {
			t.Fatalf("row %d: got %v, want 0.5", i, got)
		}
	}
}

func TestBuildCategoricalOneHot(t *testing.T) {
	def := Definition{
		Table:       "t",
		IDColumn:    "id",
		Categorical: []CategoricalField{{Column: "cat_x", Prefix: "x", IDColumn: "x_id", LookupTable: "lu_x"}},
	}
	vocabs := Vocabularies{"x": {1, 2, 3}}
	units := []Unit{
		{ID: 1, Categories: []*int64{iptr(2)}},
		{ID: 2, Categories: []*int64{iptr(9)}},
		{ID: 3, Categories: []*int64{nil}},
	}
	res, err := Build(def, RangeSet{}, vocabs, units)
	if err != nil {
		t.Fatal(err)
	}
	wantRows := [][]float64{{0, 1, 0}, {0, 0, 0}, {0, 0, 0}}
	for i, want := range wantRows {
		sum := 0.0
		for j, w := range want {
			got := res.Matrix.At(i, j)
			if got != w {
				t.Fatalf("row %d col %d: got %v, want %v", i, j, got, w)
			}
			sum += got
		}
		if sum != 0 && sum != 1 {
			t.Fatalf("row %d one-hot block sums to %v", i, sum)
		}
	}
	if res.Stats.UnmatchedCategory["x"] != 1 {
		t.Fatalf("unmatched count = %d, want 1", res.Stats.UnmatchedCategory["x"])
	}
	if res.Stats.MissingCategory != 1 {
		t.Fatalf("missing count = %d, want 1", res.Stats.MissingCategory)
	}
}

func TestBuildTenthDegreeConversion(t *testing.T) {
	def := Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "tmp_dc_syr", Name: "temp_yr", TenthDegrees: true}},
	}
	// 区间已按换算后的摄氏度存储；原始值 150 (= 15.0°C) 应归一化到 0.5
	ranges := RangeSet{"temp_yr": {Min: fptr(0), Max: fptr(30)}}
	units := []Unit{{ID: 1, Continuous: []*float64{fptr(150)}}}
	res, err := Build(def, ranges, Vocabularies{}, units)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Matrix.At(0, 0); got != 0.5 {
		t.Fatalf("got %v, want 0.5", got)
	}
}

func TestBuildWidthStableAcrossRowCounts(t *testing.T) {
	def := testDefinition()
	ranges := RangeSet{
		"a": {Min: fptr(0), Max: fptr(10)},
		"b": {Min: fptr(-5), Max: fptr(35)},
	}
	vocabs := Vocabularies{"x": {10, 20, 30, 40}}
	mk := func(id int64) Unit {
		return Unit{
			ID:         id,
			Continuous: []*float64{fptr(1), fptr(100)},
			Vegetation: []*float64{fptr(60)},
			Categories: []*int64{iptr(20)},
		}
	}
	small, err := Build(def, ranges, vocabs, []Unit{mk(1)})
	if err != nil {
		t.Fatal(err)
	}
	large, err := Build(def, ranges, vocabs, []Unit{mk(1), mk(2), mk(3)})
	if err != nil {
		t.Fatal(err)
	}
	wantCols := len(def.Continuous) + len(def.Vegetation) + 4
	if small.Cols != wantCols || large.Cols != wantCols {
		t.Fatalf("cols = %d/%d, want %d", small.Cols, large.Cols, wantCols)
	}
	if len(small.FeatureNames) != wantCols {
		t.Fatalf("feature names = %d, want %d", len(small.FeatureNames), wantCols)
	}
}

func TestBuildRowOrderMatchesIDs(t *testing.T) {
	def := Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "c_a", Name: "a"}},
	}
	ranges := RangeSet{"a": {Min: fptr(0), Max: fptr(100)}}
	// 乱序输入，单元值与标识符绑定，借此验证行序与标识符数组逐位对应
	units := []Unit{
		{ID: 30, Continuous: []*float64{fptr(30)}},
		{ID: 10, Continuous: []*float64{fptr(10)}},
		{ID: 20, Continuous: []*float64{fptr(20)}},
	}
	res, err := Build(def, ranges, Vocabularies{}, units)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int64{10, 20, 30}
	for i, id := range wantIDs {
		if res.IDs[i] != id {
			t.Fatalf("ids[%d] = %d, want %d", i, res.IDs[i], id)
		}
		want := float64(id) / 100.0
		if got := res.Matrix.At(i, 0); got != want {
			t.Fatalf("row %d: got %v, want %v", i, got, want)
		}
	}
}

func TestBuildShapeMismatchAborts(t *testing.T) {
	def := testDefinition()
	ranges := RangeSet{
		"a": {Min: fptr(0), Max: fptr(10)},
		"b": {Min: fptr(0), Max: fptr(10)},
	}
	vocabs := Vocabularies{"x": {1}}
	units := []Unit{{ID: 1, Continuous: []*float64{fptr(1)}}}
	if _, err := Build(def, ranges, vocabs, units); err == nil {
		t.Fatal("expected error for unit not matching definition shape")
	}
}

func TestBuildMissingRangeFails(t *testing.T) {
	def := Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "c_a", Name: "a"}},
	}
	if _, err := Build(def, RangeSet{}, Vocabularies{}, nil); err == nil {
		t.Fatal("expected error for missing range entry")
	}
}

func TestBuildMissingVocabularyFails(t *testing.T) {
	def := Definition{
		Table:       "t",
		IDColumn:    "id",
		Categorical: []CategoricalField{{Column: "cat_x", Prefix: "x", IDColumn: "x_id", LookupTable: "lu_x"}},
	}
	if _, err := Build(def, RangeSet{}, Vocabularies{}, nil); err == nil {
		t.Fatal("expected error for missing vocabulary")
	}
}
