package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/embedding"
	"github.com/ayusman/handsoff/internal/state"
	"github.com/ayusman/handsoff/internal/store"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hands off!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

type testEnv struct {
	app    *app.App
	camera *capture.MockCamera
	store  *store.Store
	srv    *httptest.Server
	frames []*gocv.Mat
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "handsoff.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	env := &testEnv{camera: capture.NewMockCamera(nil, true), store: st}
	env.show(gocv.NewScalar(200, 40, 40, 0))

	alerter := alert.New(alert.NopPlayer{}, alert.NopNotifier{})
	alerter.SetRecorder(alert.NewStoreRecorder(st))

	env.app = app.New(app.Config{
		Camera:     env.camera,
		Extractor:  embedding.NewMockExtractor(8),
		KV:         st.KV(),
		Alerter:    alerter,
		Iterations: 5,
		TrainDelay: -1,
		Interval:   10 * time.Millisecond,
	})
	if err := env.app.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	env.srv = httptest.NewServer(New(Config{App: env.app, Store: st}))

	t.Cleanup(func() {
		env.srv.Close()
		env.app.Close()
		st.Close()
		for _, f := range env.frames {
			f.Close()
		}
	})
	return env
}

func (e *testEnv) show(c gocv.Scalar) {
	m := gocv.NewMatWithSizeFromScalar(c, 48, 64, gocv.MatTypeCV8UC3)
	e.frames = append(e.frames, &m)
	e.camera.SetFrames([]*gocv.Mat{&m})
}

func (e *testEnv) post(t *testing.T, path string) (int, app.Status) {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var st app.Status
	json.NewDecoder(resp.Body).Decode(&st)
	return resp.StatusCode, st
}

func TestServer_TrainRunFlow(t *testing.T) {
	env := newTestEnv(t)

	if code, _ := env.post(t, "/api/run"); code != http.StatusUnprocessableEntity {
		t.Errorf("run before training: expected %d, got %d", http.StatusUnprocessableEntity, code)
	}

	if code, _ := env.post(t, "/api/train/nose"); code != http.StatusBadRequest {
		t.Errorf("unknown label: expected %d, got %d", http.StatusBadRequest, code)
	}

	if code, _ := env.post(t, "/api/train/touched"); code != http.StatusConflict {
		t.Errorf("touched before not_touch: expected %d, got %d", http.StatusConflict, code)
	}

	if code, _ := env.post(t, "/api/train/not_touch"); code != http.StatusOK {
		t.Fatalf("train not_touch: expected %d, got %d", http.StatusOK, code)
	}
	env.show(gocv.NewScalar(40, 40, 200, 0))
	if code, _ := env.post(t, "/api/train/touched"); code != http.StatusOK {
		t.Fatalf("train touched: expected %d, got %d", http.StatusOK, code)
	}

	code, st := env.post(t, "/api/run")
	if code != http.StatusOK {
		t.Fatalf("run: expected %d, got %d", http.StatusOK, code)
	}
	if st.Phase != state.Running {
		t.Errorf("expected phase %s, got %s", state.Running, st.Phase)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !env.app.Status().Touched {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for touch detection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if code, _ := env.post(t, "/api/train/touched"); code != http.StatusConflict {
		t.Errorf("train while running: expected %d, got %d", http.StatusConflict, code)
	}

	code, st = env.post(t, "/api/stop")
	if code != http.StatusOK {
		t.Fatalf("stop: expected %d, got %d", http.StatusOK, code)
	}
	if st.Phase != state.ReadyIdle {
		t.Errorf("expected phase %s, got %s", state.ReadyIdle, st.Phase)
	}

	resp, err := http.Get(env.srv.URL + "/api/alerts")
	if err != nil {
		t.Fatalf("GET /api/alerts: %v", err)
	}
	defer resp.Body.Close()
	var alerts struct {
		Alerts []struct {
			Label string `json:"label"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		t.Fatalf("failed to decode alerts: %v", err)
	}
	if len(alerts.Alerts) == 0 || alerts.Alerts[0].Label != alert.TouchLabel {
		t.Errorf("expected a recorded touch alert, got %+v", alerts.Alerts)
	}

	code, st = env.post(t, "/api/clear")
	if code != http.StatusOK {
		t.Fatalf("clear: expected %d, got %d", http.StatusOK, code)
	}
	if st.Phase != state.AwaitingLabel1Training {
		t.Errorf("expected phase %s, got %s", state.AwaitingLabel1Training, st.Phase)
	}
}

func TestServer_Events(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first app.Status
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Phase != state.AwaitingLabel1Training {
		t.Errorf("expected phase %s, got %s", state.AwaitingLabel1Training, first.Phase)
	}

	go func() {
		resp, err := http.Post(env.srv.URL+"/api/train/not_touch", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()

	sawProgress := false
	for {
		var st app.Status
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if st.Training != "" && st.Progress > 0 {
			sawProgress = true
		}
		if st.Phase == state.AwaitingLabel2Training {
			break
		}
	}
	if !sawProgress {
		t.Error("expected at least one progress update during training")
	}
}

func TestServer_Stream(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("expected multipart content type, got %s", ct)
	}

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read boundary: %v", err)
	}
	if strings.TrimSpace(boundary) != "--frame" {
		t.Errorf("expected --frame boundary, got %q", boundary)
	}
	part, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read part header: %v", err)
	}
	if strings.TrimSpace(part) != "Content-Type: image/jpeg" {
		t.Errorf("expected jpeg part, got %q", part)
	}
}
