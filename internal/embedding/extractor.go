// Package embedding turns camera frames into fixed-length feature vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultDim is the vector length produced by the MobileNet feature layer.
const DefaultDim = 1024

var (
	// ErrEmptyFrame is returned when Embed is handed an empty Mat.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrEmptyEmbedding is returned when a backend produced no values.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
	// ErrUnexpectedDim is returned when a backend's output length differs from Dim.
	ErrUnexpectedDim = errors.New("unexpected embedding dimension")
)

// Extractor produces an embedding for a single frame.
type Extractor interface {
	// Embed returns the feature vector for frame. The returned slice is
	// owned by the caller.
	Embed(ctx context.Context, frame *gocv.Mat) ([]float32, error)

	// Dim is the length of every vector Embed returns.
	Dim() int

	// Close releases any resources held by the extractor.
	Close() error
}

func encodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func checkDim(vec []float32, dim int) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedDim, len(vec), dim)
	}
	return nil
}
