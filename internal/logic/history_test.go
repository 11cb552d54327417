package logic

import "testing"

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	if h.Len() != 0 {
		t.Errorf("Len: got %d, want 0", h.Len())
	}
	if h.Samples() != nil {
		t.Errorf("Samples: got %v, want nil", h.Samples())
	}
	if _, ok := h.Oldest(); ok {
		t.Error("Oldest: expected no sample")
	}
	if _, ok := h.Newest(); ok {
		t.Error("Newest: expected no sample")
	}
	if h.Decreasing() {
		t.Error("empty history should not be decreasing")
	}
}

func TestHistorySingleSampleNotDecreasing(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	h.Push(70)
	if h.Decreasing() {
		t.Error("single sample should not be decreasing")
	}
	oldest, _ := h.Oldest()
	newest, _ := h.Newest()
	if oldest != 70 || newest != 70 {
		t.Errorf("oldest/newest: got %v/%v, want 70/70", oldest, newest)
	}
}

func TestHistoryFIFOEviction(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	for i := 1; i <= 16; i++ {
		h.Push(float64(i))
	}

	if h.Len() != 15 {
		t.Fatalf("Len: got %d, want 15", h.Len())
	}
	got := h.Samples()
	for i, v := range got {
		if want := float64(i + 2); v != want {
			t.Errorf("sample %d: got %v, want %v", i, v, want)
		}
	}
	if oldest, _ := h.Oldest(); oldest != 2 {
		t.Errorf("Oldest: got %v, want 2", oldest)
	}
	if newest, _ := h.Newest(); newest != 16 {
		t.Errorf("Newest: got %v, want 16", newest)
	}
}

func TestHistoryWrapsManyTimes(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 10; i++ {
		h.Push(float64(i))
	}
	got := h.Samples()
	want := []float64{8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHistoryDecreasing(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	h.Push(70.0)
	h.Push(69.5)
	if !h.Decreasing() {
		t.Error("[70.0, 69.5] should be decreasing")
	}
}

func TestHistoryIncreasing(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	h.Push(69.0)
	h.Push(70.0)
	if h.Decreasing() {
		t.Error("[69.0, 70.0] should not be decreasing")
	}
}

func TestHistoryFlatNotDecreasing(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	h.Push(69.0)
	h.Push(68.0)
	h.Push(69.0)
	if h.Decreasing() {
		t.Error("equal endpoints should not be decreasing")
	}
}

func TestHistoryIgnoresIntermediateSamples(t *testing.T) {
	h := NewHistory(HistoryCapacity)
	for _, v := range []float64{70, 72, 74, 71, 69.9} {
		h.Push(v)
	}
	if !h.Decreasing() {
		t.Error("expected decreasing from 70 to 69.9 despite intermediate rise")
	}
}

func TestHistoryTrendFollowsWindow(t *testing.T) {
	h := NewHistory(3)
	h.Push(75) // evicted below
	h.Push(68)
	h.Push(69)
	h.Push(70)
	if h.Decreasing() {
		t.Error("trend should only consider the retained window")
	}
}
