package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func solidFrame(t *testing.T, c color.RGBA) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(0, 0, 64, 48), c, -1)
	return frame
}

func TestMockExtractor_MeanColor(t *testing.T) {
	m := NewMockExtractor(8)

	red := solidFrame(t, color.RGBA{R: 255, A: 255})
	defer red.Close()
	blue := solidFrame(t, color.RGBA{B: 255, A: 255})
	defer blue.Close()

	ctx := context.Background()
	rv, err := m.Embed(ctx, &red)
	if err != nil {
		t.Fatalf("Embed(red) failed: %v", err)
	}
	bv, err := m.Embed(ctx, &blue)
	if err != nil {
		t.Fatalf("Embed(blue) failed: %v", err)
	}

	if len(rv) != 8 || m.Dim() != 8 {
		t.Fatalf("expected dim 8, got len=%d Dim=%d", len(rv), m.Dim())
	}
	// BGR order: blue lands in component 0, red in component 2.
	if rv[2] < 0.99 || rv[0] > 0.01 {
		t.Errorf("unexpected red vector %v", rv[:3])
	}
	if bv[0] < 0.99 || bv[2] > 0.01 {
		t.Errorf("unexpected blue vector %v", bv[:3])
	}
	if m.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls())
	}
}

func TestMockExtractor_Errors(t *testing.T) {
	m := NewMockExtractor(DefaultDim)
	ctx := context.Background()

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := m.Embed(ctx, &empty); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", err)
	}

	boom := errors.New("boom")
	m.SetError(boom)
	frame := solidFrame(t, color.RGBA{G: 255, A: 255})
	defer frame.Close()
	if _, err := m.Embed(ctx, &frame); !errors.Is(err, boom) {
		t.Errorf("expected configured error, got %v", err)
	}
}

func TestCheckDim(t *testing.T) {
	tests := []struct {
		name    string
		vec     []float32
		dim     int
		wantErr error
	}{
		{name: "match", vec: make([]float32, 4), dim: 4},
		{name: "unchecked dim", vec: make([]float32, 7), dim: 0},
		{name: "empty", vec: nil, dim: 4, wantErr: ErrEmptyEmbedding},
		{name: "mismatch", vec: make([]float32, 3), dim: 4, wantErr: ErrUnexpectedDim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDim(tt.vec, tt.dim)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPExtractor_Embed(t *testing.T) {
	var gotContentType string
	var gotBytes int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/image" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotBytes = len(data)
		gotContentType = header.Header.Get("Content-Type")

		json.NewEncoder(w).Encode(map[string]any{
			"dim":       4,
			"embedding": []float32{0.1, 0.2, 0.3, 0.4},
			"model":     "test",
		})
	}))
	defer srv.Close()

	e := NewHTTPExtractor(srv.URL+"/", 4)
	frame := solidFrame(t, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	defer frame.Close()

	vec, err := e.Embed(context.Background(), &frame)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 || vec[3] != 0.4 {
		t.Errorf("unexpected vector %v", vec)
	}
	if gotBytes == 0 {
		t.Error("server received no image bytes")
	}
	if gotContentType != "application/octet-stream" {
		t.Errorf("unexpected part content type %q", gotContentType)
	}
}

func TestHTTPExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "wrong dimension",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"embedding":[1,2,3]}`))
			},
			wantErr: ErrUnexpectedDim,
		},
		{
			name: "empty embedding",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"embedding":[]}`))
			},
			wantErr: ErrEmptyEmbedding,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
	}

	frame := solidFrame(t, color.RGBA{A: 255})
	defer frame.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			e := NewHTTPExtractor(srv.URL, 4)
			_, err := e.Embed(context.Background(), &frame)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPExtractor_Defaults(t *testing.T) {
	e := NewHTTPExtractor("", 0)
	if e.baseURL != defaultEmbeddingURL {
		t.Errorf("expected default URL, got %s", e.baseURL)
	}
	if e.Dim() != DefaultDim {
		t.Errorf("expected dim %d, got %d", DefaultDim, e.Dim())
	}
}

func TestSubprocessExtractor_StartFailure(t *testing.T) {
	e := newSubprocessExtractor(filepath.Join(t.TempDir(), "no-python"), "service.py", 0)
	defer e.Close()

	frame := solidFrame(t, color.RGBA{A: 255})
	defer frame.Close()

	if _, err := e.Embed(context.Background(), &frame); err == nil {
		t.Fatal("expected start error for missing interpreter")
	}
	if e.Dim() != DefaultDim {
		t.Errorf("expected default dim, got %d", e.Dim())
	}
}

func TestDNNExtractor_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DNN integration test in short mode")
	}

	e, err := NewDNNExtractor(DefaultDNNConfig())
	if err != nil {
		t.Skipf("model not available: %v", err)
	}
	defer e.Close()

	frame := solidFrame(t, color.RGBA{R: 128, G: 64, B: 32, A: 255})
	defer frame.Close()

	vec, err := e.Embed(context.Background(), &frame)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != e.Dim() {
		t.Errorf("expected %d values, got %d", e.Dim(), len(vec))
	}
}
