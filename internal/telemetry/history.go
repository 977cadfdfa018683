package telemetry

// VoltageHistory is a bounded FIFO of raw voltage readings used to damp
// sensor noise before the reading is mapped to a battery percentage.
// It is not safe for concurrent use; the owning tracker serializes access.
type VoltageHistory struct {
	capacity int
	values   []float64
}

// NewVoltageHistory creates a history bounded to capacity readings.
func NewVoltageHistory(capacity int) *VoltageHistory {
	if capacity <= 0 {
		capacity = 1
	}
	return &VoltageHistory{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

// Add appends a reading, evicting the oldest when the window is full.
func (h *VoltageHistory) Add(v float64) {
	if len(h.values) == h.capacity {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
	h.values = append(h.values, v)
}

// Average returns the mean of the current window, or 0 when empty.
func (h *VoltageHistory) Average() float64 {
	if len(h.values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range h.values {
		sum += v
	}
	return sum / float64(len(h.values))
}

// Len returns the number of stored readings.
func (h *VoltageHistory) Len() int {
	return len(h.values)
}

// Values returns the stored readings in arrival order.
func (h *VoltageHistory) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}
