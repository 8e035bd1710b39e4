package embedding

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockExtractor returns a fixed or frame-derived vector.
type MockExtractor struct {
	mu    sync.Mutex
	dim   int
	fn    func(frame *gocv.Mat) []float32
	err   error
	calls int
}

// NewMockExtractor returns an extractor whose vector encodes the mean
// BGR color of the frame in its first three components.
func NewMockExtractor(dim int) *MockExtractor {
	if dim < 3 {
		dim = 3
	}
	m := &MockExtractor{dim: dim}
	m.fn = m.meanColor
	return m
}

// SetFunc replaces the vector function.
func (m *MockExtractor) SetFunc(fn func(frame *gocv.Mat) []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// SetError makes every Embed call fail with err.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Embed calls.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed implements Extractor.
func (m *MockExtractor) Embed(ctx context.Context, frame *gocv.Mat) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	return m.fn(frame), nil
}

// Dim implements Extractor.
func (m *MockExtractor) Dim() int {
	return m.dim
}

// Close implements Extractor.
func (m *MockExtractor) Close() error {
	return nil
}

func (m *MockExtractor) meanColor(frame *gocv.Mat) []float32 {
	vec := make([]float32, m.dim)
	mean := frame.Mean()
	vec[0] = float32(mean.Val1 / 255)
	vec[1] = float32(mean.Val2 / 255)
	vec[2] = float32(mean.Val3 / 255)
	// Keep the vector non-zero so cosine distance is defined.
	for i := 3; i < m.dim; i++ {
		vec[i] = 0.01
	}
	return vec
}
