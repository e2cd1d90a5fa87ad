package pca

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRunDimsAndVariance(t *testing.T) {
	// 第一列方差远大于其余列，首个成分应吸收绝大部分方差
	m := mat.NewDense(6, 3, []float64{
		10, 0.1, 0.0,
		-10, 0.0, 0.1,
		20, 0.1, 0.1,
		-20, 0.0, 0.0,
		30, 0.1, 0.0,
		-30, 0.0, 0.1,
	})
	res, err := Run(m, 0.90, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.NComponents < 1 || res.NComponents > 3 {
		t.Fatalf("n components = %d", res.NComponents)
	}
	r, c := res.Coords.Dims()
	if r != 6 || c != res.NComponents {
		t.Fatalf("coords dims = %dx%d", r, c)
	}
	lr, lc := res.Loadings.Dims()
	if lr != res.NComponents || lc != 3 {
		t.Fatalf("loadings dims = %dx%d", lr, lc)
	}
	if res.Components[0].ExplainedRatio < 0.9 {
		t.Fatalf("first component ratio = %v, want > 0.9", res.Components[0].ExplainedRatio)
	}
	if !res.TargetReached {
		t.Fatal("target variance should be reached")
	}
	last := res.Components[len(res.Components)-1]
	if math.Abs(last.CumulativeRatio-res.TotalExplained) > 1e-12 {
		t.Fatalf("cumulative ratio %v != total %v", last.CumulativeRatio, res.TotalExplained)
	}
}

func TestRunRatiosSumToOneWithFullRank(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 3,
		3, 8,
		4, 1,
	})
	res, err := Run(m, 1.0, 2)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, c := range res.Components {
		sum += c.ExplainedRatio
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("ratios sum to %v, want 1", sum)
	}
}

func TestRunCapsComponents(t *testing.T) {
	m := mat.NewDense(5, 4, []float64{
		1, 2, 3, 4,
		2, 3, 4, 5,
		5, 1, 0, 2,
		0, 0, 1, 1,
		3, 3, 3, 3,
	})
	res, err := Run(m, 1.0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.NComponents > 2 {
		t.Fatalf("n components = %d, want <= 2", res.NComponents)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if _, err := Run(m, 0, 10); err == nil {
		t.Fatal("expected error for zero target variance")
	}
	if _, err := Run(m, 0.9, 0); err == nil {
		t.Fatal("expected error for zero max components")
	}
	one := mat.NewDense(1, 2, []float64{1, 2})
	if _, err := Run(one, 0.9, 1); err == nil {
		t.Fatal("expected error for single-row matrix")
	}
}

func TestTopLoadings(t *testing.T) {
	res := &Result{Loadings: mat.NewDense(1, 4, []float64{0.1, -0.9, 0.5, 0.2})}
	top := TopLoadings(res, 0, 2)
	if len(top) != 2 || top[0] != 1 || top[1] != 2 {
		t.Fatalf("top = %v, want [1 2]", top)
	}
}
