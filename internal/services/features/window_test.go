package features

import (
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestMakeWindowsCounts(t *testing.T) {
	for _, tc := range []struct {
		n, seqLen int
	}{
		{31, 30}, {40, 30}, {400, 30}, {5, 1}, {10, 9},
	} {
		windows, targets, err := MakeWindows(seq(tc.n), tc.seqLen)
		if err != nil {
			t.Fatalf("n=%d seq=%d: unexpected error %v", tc.n, tc.seqLen, err)
		}
		if len(windows) != tc.n-tc.seqLen || len(targets) != len(windows) {
			t.Fatalf("n=%d seq=%d: got %d windows %d targets", tc.n, tc.seqLen, len(windows), len(targets))
		}
		for i, w := range windows {
			if len(w) != tc.seqLen {
				t.Fatalf("window %d has len %d", i, len(w))
			}
		}
	}
}

func TestMakeWindowsContent(t *testing.T) {
	values := seq(6)
	windows, targets, err := MakeWindows(values, 3)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	// i=3: [0 1 2] -> 3, i=5: [2 3 4] -> 5
	if windows[0][0] != 0 || windows[0][2] != 2 || targets[0] != 3 {
		t.Fatalf("unexpected first window %v -> %v", windows[0], targets[0])
	}
	if windows[2][0] != 2 || targets[2] != 5 {
		t.Fatalf("unexpected last window %v -> %v", windows[2], targets[2])
	}
	windows[0][0] = 99
	if values[0] != 0 {
		t.Fatalf("windows must not alias input")
	}
}

func TestMakeWindowsInsufficient(t *testing.T) {
	for _, n := range []int{0, 1, 30} {
		_, _, err := MakeWindows(seq(n), 30)
		if !errors.Is(err, models.ErrInsufficientData) {
			t.Fatalf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
	if _, _, err := MakeWindows(seq(10), 0); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("seq=0: expected ErrInsufficientData, got %v", err)
	}
}

func TestMakeWindowsWithContext(t *testing.T) {
	history := seq(10)
	values := []float64{10, 11, 12}
	windows, targets, err := MakeWindowsWithContext(history, values, 4)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(windows) != len(values) {
		t.Fatalf("expected %d windows, got %d", len(values), len(windows))
	}
	for i := range values {
		if targets[i] != values[i] {
			t.Fatalf("target %d = %v, want %v", i, targets[i], values[i])
		}
	}
	if windows[0][0] != 6 || windows[0][3] != 9 {
		t.Fatalf("first window should come from history tail, got %v", windows[0])
	}
	if _, _, err := MakeWindowsWithContext(seq(2), values, 4); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for short history, got %v", err)
	}
}

func TestLastWindow(t *testing.T) {
	w, err := LastWindow(seq(40), 30)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(w) != 30 || w[0] != 10 || w[29] != 39 {
		t.Fatalf("unexpected last window %v", w)
	}
	if _, err := LastWindow(seq(5), 30); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
