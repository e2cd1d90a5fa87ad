package feature

import (
	"context"
	"errors"
	"testing"
)

// fakeSource：测试注入的后端假实现
type fakeSource struct {
	units      []Unit
	cached     RangeSet
	hasCached  bool
	fetchErr   error
	computed   RangeSet
	computeErr error
	vocabs     map[string][]int64
	vocabErr   error

	computeCalls int
}

func (f *fakeSource) FetchSpatialUnits(ctx context.Context, def Definition) ([]Unit, error) {
	return f.units, nil
}

func (f *fakeSource) FetchRanges(ctx context.Context, def Definition) (RangeSet, bool, error) {
	return f.cached, f.hasCached, f.fetchErr
}

func (f *fakeSource) ComputeRanges(ctx context.Context, def Definition) (RangeSet, error) {
	f.computeCalls++
	return f.computed, f.computeErr
}

func (f *fakeSource) FetchVocabulary(ctx context.Context, cf CategoricalField) ([]int64, error) {
	return f.vocabs[cf.Prefix], f.vocabErr
}

func rangeDef() Definition {
	return Definition{
		Table:      "t",
		IDColumn:   "id",
		Continuous: []ContinuousField{{Column: "c_a", Name: "a"}},
	}
}

func TestResolveRangesPrefersCached(t *testing.T) {
	cached := RangeSet{"a": {Min: fptr(1), Max: fptr(9)}}
	src := &fakeSource{cached: cached, hasCached: true, computed: RangeSet{"a": {Min: fptr(0), Max: fptr(100)}}}
	rs, err := ResolveRanges(context.Background(), src, rangeDef())
	if err != nil {
		t.Fatal(err)
	}
	if rs.Origin != RangeOriginCached {
		t.Fatalf("origin = %v, want cached", rs.Origin)
	}
	if *rs.Ranges["a"].Min != 1 || *rs.Ranges["a"].Max != 9 {
		t.Fatal("cached ranges not returned verbatim")
	}
	if src.computeCalls != 0 {
		t.Fatal("compute must not run when cache hits")
	}
}

func TestResolveRangesComputesOnMiss(t *testing.T) {
	src := &fakeSource{computed: RangeSet{"a": {Min: fptr(0), Max: fptr(100)}}}
	rs, err := ResolveRanges(context.Background(), src, rangeDef())
	if err != nil {
		t.Fatal(err)
	}
	if rs.Origin != RangeOriginComputed {
		t.Fatalf("origin = %v, want computed", rs.Origin)
	}
	if src.computeCalls != 1 {
		t.Fatalf("compute calls = %d, want 1", src.computeCalls)
	}
}

func TestResolveRangesFailsFastOnStoreError(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("connection refused")}
	if _, err := ResolveRanges(context.Background(), src, rangeDef()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestResolveRangesRejectsIncompleteCache(t *testing.T) {
	src := &fakeSource{cached: RangeSet{}, hasCached: true}
	if _, err := ResolveRanges(context.Background(), src, rangeDef()); err == nil {
		t.Fatal("expected error for cached set missing a field")
	}
}

func TestResolveRangesRejectsInvertedRange(t *testing.T) {
	src := &fakeSource{cached: RangeSet{"a": {Min: fptr(10), Max: fptr(1)}}, hasCached: true}
	if _, err := ResolveRanges(context.Background(), src, rangeDef()); err == nil {
		t.Fatal("expected error for min > max")
	}
}

func TestLoadVocabulariesSortsAndAllowsEmpty(t *testing.T) {
	def := Definition{
		Table:    "t",
		IDColumn: "id",
		Categorical: []CategoricalField{
			{Column: "cat_x", Prefix: "x", IDColumn: "x_id", LookupTable: "lu_x"},
			{Column: "cat_y", Prefix: "y", IDColumn: "y_id", LookupTable: "lu_y"},
		},
	}
	src := &fakeSource{vocabs: map[string][]int64{"x": {30, 10, 20}}}
	vocabs, err := LoadVocabularies(context.Background(), src, def)
	if err != nil {
		t.Fatal(err)
	}
	got := vocabs["x"]
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("vocab x = %v, want sorted [10 20 30]", got)
	}
	if len(vocabs["y"]) != 0 {
		t.Fatalf("vocab y = %v, want empty", vocabs["y"])
	}
	if vocabs.Total() != 3 {
		t.Fatalf("total = %d, want 3", vocabs.Total())
	}
}
