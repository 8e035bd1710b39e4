package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPExtractor posts JPEG frames to an embedding server.
type HTTPExtractor struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewHTTPExtractor creates an extractor for the server at baseURL.
func NewHTTPExtractor(baseURL string, dim int) *HTTPExtractor {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HTTPExtractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Embed uploads frame as multipart "file" to /embed/image.
func (e *HTTPExtractor) Embed(ctx context.Context, frame *gocv.Mat) ([]float32, error) {
	data, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if err := checkDim(embResp.Embedding, e.dim); err != nil {
		return nil, err
	}
	return embResp.Embedding, nil
}

// Dim returns the expected vector length.
func (e *HTTPExtractor) Dim() int {
	return e.dim
}

// Close is a no-op.
func (e *HTTPExtractor) Close() error {
	return nil
}
