package logger

// RingBuffer keeps the most recent lines written to a log file.
type RingBuffer struct {
	lines     []string
	capacity  int
	head      int // Next write position
	size      int // Lines currently held
	totalSeen int // Lines added since the last rotation
}

// NewRingBuffer creates a ring buffer holding up to capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, overwriting the oldest one when full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.head] = line
	rb.head = (rb.head + 1) % rb.capacity
	rb.size = min(rb.size+1, rb.capacity)
	rb.totalSeen++
}

// Len returns the number of lines held.
func (rb *RingBuffer) Len() int {
	return rb.size
}

// Lines returns the held lines, oldest first.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	result := make([]string, rb.size)
	start := (rb.head - rb.size + rb.capacity) % rb.capacity
	for i := range rb.size {
		result[i] = rb.lines[(start+i)%rb.capacity]
	}

	return result
}

// shouldRotate reports whether twice the capacity has been written since
// the last rotation.
func (rb *RingBuffer) shouldRotate() bool {
	return rb.totalSeen >= rb.capacity*2
}

// markRotated resets the counter after the file was rewritten.
func (rb *RingBuffer) markRotated() {
	rb.totalSeen = rb.size
}
