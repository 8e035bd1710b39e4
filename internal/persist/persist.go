// Package persist saves and restores the classifier dataset under a single
// key of a key/value store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/handsoff/internal/knn"
)

// DatasetKey is the key the dataset blob is stored under.
const DatasetKey = "knnClassifierDataset"

// DefaultDim is the embedding length produced by the default MobileNet extractor.
const DefaultDim = 1024

// ErrCorruptDataset is returned when the stored dataset cannot be restored.
// Both the stored copy and the in-memory classifier have been cleared when it is returned.
var ErrCorruptDataset = errors.New("stored dataset is corrupt, please train again")

// KV is the key/value boundary the adapter persists through.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Adapter moves the classifier dataset to and from a KV store.
type Adapter struct {
	kv         KV
	classifier *knn.Classifier
	dim        int
}

// New creates an Adapter. A dim <= 0 selects DefaultDim.
func New(kv KV, classifier *knn.Classifier, dim int) *Adapter {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Adapter{
		kv:         kv,
		classifier: classifier,
		dim:        dim,
	}
}

// Dim returns the per-vector dimensionality used when restoring.
func (a *Adapter) Dim() int {
	return a.dim
}

// Save serializes the full dataset as {label: [flattened values...]} and stores it.
func (a *Adapter) Save(ctx context.Context) error {
	data, err := Encode(a.classifier.Dataset())
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	if err := a.kv.Set(ctx, DatasetKey, string(data)); err != nil {
		return fmt.Errorf("store dataset: %w", err)
	}

	log.Printf("Saved dataset (%d classes)", a.classifier.NumClasses())
	return nil
}

// Load restores the stored dataset into the classifier. It reports false with a
// nil error when nothing is stored. A stored value that cannot be parsed or
// reshaped clears all state and returns ErrCorruptDataset.
func (a *Adapter) Load(ctx context.Context) (bool, error) {
	raw, ok, err := a.kv.Get(ctx, DatasetKey)
	if err != nil {
		return false, fmt.Errorf("read dataset: %w", err)
	}
	if !ok {
		log.Println("No saved dataset found")
		return false, nil
	}

	ds, err := Decode([]byte(raw), a.dim)
	if err == nil {
		err = a.classifier.SetDataset(ds)
	}
	if err != nil {
		log.Printf("Failed to restore dataset: %v", err)
		if clearErr := a.Clear(ctx); clearErr != nil {
			log.Printf("Failed to clear corrupt dataset: %v", clearErr)
		}
		return false, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
	}

	log.Printf("Loaded dataset (%d classes)", a.classifier.NumClasses())
	return true, nil
}

// Clear removes the stored dataset and empties the classifier.
func (a *Adapter) Clear(ctx context.Context) error {
	a.classifier.ClearAll()
	if err := a.kv.Remove(ctx, DatasetKey); err != nil {
		return fmt.Errorf("remove dataset: %w", err)
	}
	log.Println("Cleared dataset")
	return nil
}

// Encode flattens each label's vectors into one array and marshals the result.
func Encode(ds knn.Dataset) ([]byte, error) {
	flat := make(map[string][]float32, len(ds))
	for label, vecs := range ds {
		var values []float32
		for _, v := range vecs {
			values = append(values, v...)
		}
		flat[label] = values
	}
	return json.Marshal(flat)
}

// Decode parses data produced by Encode and reshapes each label's values into
// vectors of length dim.
func Decode(data []byte, dim int) (knn.Dataset, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}

	var flat map[string][]float32
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if flat == nil {
		return nil, errors.New("dataset is null")
	}

	ds := make(knn.Dataset, len(flat))
	for label, values := range flat {
		if len(values) == 0 || len(values)%dim != 0 {
			return nil, fmt.Errorf("label %q has %d values, not a positive multiple of %d", label, len(values), dim)
		}
		vecs := make([][]float32, 0, len(values)/dim)
		for off := 0; off < len(values); off += dim {
			vecs = append(vecs, values[off:off+dim:off+dim])
		}
		ds[label] = vecs
	}

	return ds, nil
}
