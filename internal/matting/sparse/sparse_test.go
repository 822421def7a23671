package sparse

import "testing"

func TestToCSRSumsDuplicates(t *testing.T) {
	coo := NewCOO(2, 4)
	coo.Add(0, 0, 1.0)
	coo.Add(0, 0, 2.0)
	coo.Add(0, 1, 3.0)
	coo.Add(1, 1, 4.0)

	csr, err := coo.ToCSR()
	if err != nil {
		t.Fatalf("ToCSR: %v", err)
	}
	if got := csr.Diag(); got[0] != 3.0 || got[1] != 4.0 {
		t.Fatalf("Diag() = %v, want [3 4]", got)
	}
	cols, vals := csr.RowRange(0)
	if len(cols) != 2 {
		t.Fatalf("row 0 has %d entries, want 2", len(cols))
	}
	_ = vals
}

func TestMulVec(t *testing.T) {
	coo := NewCOO(2, 4)
	coo.Add(0, 0, 2.0)
	coo.Add(0, 1, 1.0)
	coo.Add(1, 0, 1.0)
	coo.Add(1, 1, 2.0)
	csr, err := coo.ToCSR()
	if err != nil {
		t.Fatalf("ToCSR: %v", err)
	}

	x := []float64{1, 1}
	y := make([]float64, 2)
	csr.MulVec(x, y)
	if y[0] != 3 || y[1] != 3 {
		t.Fatalf("MulVec = %v, want [3 3]", y)
	}
}

func TestAddDiag(t *testing.T) {
	coo := NewCOO(2, 2)
	coo.Add(0, 1, 5.0)
	coo.Add(1, 0, 5.0)
	csr, err := coo.ToCSR()
	if err != nil {
		t.Fatalf("ToCSR: %v", err)
	}
	withDiag := csr.AddDiag([]float64{1, 2})
	d := withDiag.Diag()
	if d[0] != 1 || d[1] != 2 {
		t.Fatalf("Diag() after AddDiag = %v, want [1 2]", d)
	}
	cols, vals := withDiag.RowRange(0)
	if len(cols) != 2 {
		t.Fatalf("row 0 has %d entries, want 2 (diag + off-diag)", len(cols))
	}
	_ = vals
}

func TestSubmatrixAndMulVecRect(t *testing.T) {
	// 3x3 identity-plus-offdiag matrix.
	coo := NewCOO(3, 3)
	coo.Add(0, 0, 1)
	coo.Add(1, 1, 1)
	coo.Add(2, 2, 1)
	coo.Add(0, 2, 9)
	csr, err := coo.ToCSR()
	if err != nil {
		t.Fatalf("ToCSR: %v", err)
	}

	rowIdx := []int{0, 1}
	colPos := map[int32]int{2: 0}
	sub := csr.Submatrix(rowIdx, colPos, 1)
	if sub.Rows != 2 || sub.Cols != 1 {
		t.Fatalf("Submatrix dims = %dx%d, want 2x1", sub.Rows, sub.Cols)
	}
	y := sub.MulVecRect([]float64{2})
	if len(y) != 2 || y[0] != 18 || y[1] != 0 {
		t.Fatalf("MulVecRect = %v, want [18 0]", y)
	}
}

func TestToCSRRejectsNonPositiveOrder(t *testing.T) {
	coo := NewCOO(0, 0)
	if _, err := coo.ToCSR(); err == nil {
		t.Fatal("expected an error for matrix order 0")
	}
}
