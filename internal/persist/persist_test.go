package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/handsoff/internal/knn"
	"github.com/ayusman/handsoff/internal/store"
)

// memKV is an in-memory KV used by the tests.
type memKV struct {
	data   map[string]string
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Remove(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func vec(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.125
	}
	return v
}

func trainedClassifier(t *testing.T, dim int) *knn.Classifier {
	t.Helper()
	c := knn.New()
	for i := 0; i < 3; i++ {
		if err := c.AddExample(vec(dim, float32(i)), "not_touch"); err != nil {
			t.Fatal(err)
		}
		if err := c.AddExample(vec(dim, float32(i)+10), "touched"); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestAdapter_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	const dim = 4

	src := trainedClassifier(t, dim)
	if err := New(kv, src, dim).Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := kv.data[DatasetKey]; !ok {
		t.Fatalf("dataset not stored under %q", DatasetKey)
	}

	dst := knn.New()
	loaded, err := New(kv, dst, dim).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded {
		t.Fatal("Load() reported nothing loaded")
	}

	want := src.Dataset()
	got := dst.Dataset()
	if len(got) != len(want) {
		t.Fatalf("got %d labels, want %d", len(got), len(want))
	}
	for label, vecs := range want {
		if len(got[label]) != len(vecs) {
			t.Fatalf("label %s: got %d vectors, want %d", label, len(got[label]), len(vecs))
		}
		for i := range vecs {
			for j := range vecs[i] {
				if got[label][i][j] != vecs[i][j] {
					t.Errorf("label %s vec %d[%d] = %v, want %v", label, i, j, got[label][i][j], vecs[i][j])
				}
			}
		}
	}
}

func TestAdapter_Load_Absent(t *testing.T) {
	c := knn.New()
	loaded, err := New(newMemKV(), c, 4).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded {
		t.Error("Load() should report false when nothing is stored")
	}
}

func TestAdapter_Load_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "malformed json", value: `{"touched": [1, 2,`},
		{name: "wrong length", value: `{"touched": [1, 2, 3]}`},
		{name: "empty label", value: `{"touched": []}`},
		{name: "null", value: `null`},
		{name: "not an object", value: `[1, 2, 3, 4]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := newMemKV()
			kv.data[DatasetKey] = tt.value

			// Pre-populate so we can check the classifier is emptied, not left partial.
			c := trainedClassifier(t, 4)

			loaded, err := New(kv, c, 4).Load(ctx)
			if !errors.Is(err, ErrCorruptDataset) {
				t.Fatalf("expected ErrCorruptDataset, got %v", err)
			}
			if loaded {
				t.Error("Load() should report false on corruption")
			}
			if _, ok := kv.data[DatasetKey]; ok {
				t.Error("corrupt dataset should be removed from the store")
			}
			if c.NumClasses() != 0 {
				t.Errorf("classifier should be empty, has %d classes", c.NumClasses())
			}
		})
	}
}

func TestAdapter_Save_Error(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("disk full")

	err := New(kv, trainedClassifier(t, 4), 4).Save(context.Background())
	if err == nil {
		t.Fatal("expected error from Save()")
	}
}

func TestAdapter_Clear(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	c := trainedClassifier(t, 4)
	a := New(kv, c, 4)

	if err := a.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, ok := kv.data[DatasetKey]; ok {
		t.Error("dataset should be removed")
	}
	if c.NumClasses() != 0 {
		t.Errorf("NumClasses() = %d, want 0", c.NumClasses())
	}
}

func TestNew_DefaultDim(t *testing.T) {
	if got := New(newMemKV(), knn.New(), 0).Dim(); got != DefaultDim {
		t.Errorf("Dim() = %d, want %d", got, DefaultDim)
	}
}

func TestDecode_Reshape(t *testing.T) {
	ds, err := Decode([]byte(`{"a":[1,2,3,4,5,6]}`), 2)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(ds["a"]) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(ds["a"]))
	}
	if ds["a"][2][0] != 5 || ds["a"][2][1] != 6 {
		t.Errorf("last vector = %v, want [5 6]", ds["a"][2])
	}
}

func TestAdapter_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	src := trainedClassifier(t, 8)
	if err := New(s.KV(), src, 8).Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dst := knn.New()
	if _, err := New(s.KV(), dst, 8).Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if dst.NumClasses() != 2 || dst.Count("touched") != 3 {
		t.Errorf("restored classes=%d touched=%d", dst.NumClasses(), dst.Count("touched"))
	}
}
