package embedding

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// DNNConfig configures the OpenCV DNN extractor.
type DNNConfig struct {
	// ModelPath is an ONNX file whose output is the feature layer.
	ModelPath string
	// OutputLayer selects the layer to read; empty means the default output.
	OutputLayer string
	// InputSize is the square side the frame is resized to.
	InputSize int
	// Dim is the expected vector length.
	Dim int
}

// DefaultDNNConfig returns settings for a 224x224 MobileNet v1 feature extractor.
func DefaultDNNConfig() DNNConfig {
	return DNNConfig{
		ModelPath: "mobilenet_v1_feature.onnx",
		InputSize: 224,
		Dim:       DefaultDim,
	}
}

// DNNExtractor runs an ONNX network through gocv's dnn module.
type DNNExtractor struct {
	config DNNConfig
	net    gocv.Net
	mu     sync.Mutex
}

// NewDNNExtractor loads the network named in config.
func NewDNNExtractor(config DNNConfig) (*DNNExtractor, error) {
	def := DefaultDNNConfig()
	if config.InputSize <= 0 {
		config.InputSize = def.InputSize
	}
	if config.Dim <= 0 {
		config.Dim = def.Dim
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load model %s", config.ModelPath)
	}

	return &DNNExtractor{config: config, net: net}, nil
}

// Embed resizes frame to the network input, normalizes to [-1, 1] and
// returns the flattened output layer.
func (e *DNNExtractor) Embed(ctx context.Context, frame *gocv.Mat) ([]float32, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := image.Pt(e.config.InputSize, e.config.InputSize)
	blob := gocv.BlobFromImage(*frame, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.net.SetInput(blob, "")
	out := e.net.Forward(e.config.OutputLayer)
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if err := checkDim(data, e.config.Dim); err != nil {
		return nil, err
	}

	vec := make([]float32, len(data))
	copy(vec, data)
	return vec, nil
}

// Dim returns the configured vector length.
func (e *DNNExtractor) Dim() int {
	return e.config.Dim
}

// Close releases the network.
func (e *DNNExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
