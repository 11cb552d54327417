package logic

// History is a fixed-capacity FIFO of indoor temperature samples.
// Once full, each Push evicts the oldest sample.
type History struct {
	buf      []float64
	capacity int
	head     int // next write position
	count    int
}

// NewHistory creates an empty history holding at most capacity samples.
func NewHistory(capacity int) *History {
	return &History{
		buf:      make([]float64, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, overwriting the oldest one when full.
func (h *History) Push(v float64) {
	h.buf[h.head] = v
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return h.count
}

// Samples returns the retained samples, oldest first.
func (h *History) Samples() []float64 {
	if h.count == 0 {
		return nil
	}
	out := make([]float64, h.count)
	// Oldest item is at (head - count) mod capacity
	start := (h.head - h.count + h.capacity) % h.capacity
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(start+i)%h.capacity]
	}
	return out
}

// Oldest returns the oldest retained sample.
func (h *History) Oldest() (float64, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.buf[(h.head-h.count+h.capacity)%h.capacity], true
}

// Newest returns the most recent sample.
func (h *History) Newest() (float64, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.buf[(h.head-1+h.capacity)%h.capacity], true
}

// Decreasing reports whether the window holds at least two samples and the
// newest is strictly below the oldest. Intermediate samples are ignored.
func (h *History) Decreasing() bool {
	if h.count < 2 {
		return false
	}
	oldest, _ := h.Oldest()
	newest, _ := h.Newest()
	return newest < oldest
}
