// Package knn provides the labeled example store and k-nearest-neighbor classifier
// used to tell "hand on face" frames from ordinary ones.
package knn

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// DefaultK is the number of neighbors that vote on a prediction.
const DefaultK = 3

var (
	// ErrEmpty is returned when predicting with no stored examples.
	ErrEmpty = errors.New("classifier has no examples")
	// ErrDimensionMismatch is returned when a vector's length differs from the stored vectors.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector is returned when adding or predicting with a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")
)

// Dataset maps a label to the vectors stored under it.
type Dataset map[string][][]float32

// Prediction is the result of classifying a single vector.
type Prediction struct {
	Label       string             // Winning label
	ClassIndex  int                // Position of Label in Classes()
	Confidences map[string]float64 // Vote share per known label (0-1)
}

type example struct {
	vec   []float32
	label string
}

// Classifier accumulates labeled vectors and predicts labels by neighbor voting.
// Neighbors are found by an exact scan under cosine distance.
//
// Class order: labels passed to New come first, in that order, whenever
// they are present. Other labels follow in the order they were first added
// (sorted, after SetDataset). The order is therefore the same after a
// restore or rollback as it was live.
//
// It is safe for concurrent use.
type Classifier struct {
	mu        sync.RWMutex
	preferred []string
	examples  []example
	classes   []string
	dataset   Dataset
	dim       int
}

// New creates an empty Classifier. preferred fixes the leading class order.
func New(preferred ...string) *Classifier {
	c := &Classifier{preferred: append([]string(nil), preferred...)}
	c.reset()
	return c
}

// reset drops all state. Callers must hold the write lock.
func (c *Classifier) reset() {
	c.examples = nil
	c.classes = nil
	c.dataset = make(Dataset)
	c.dim = 0
}

// rank orders a label: its position in preferred, or len(preferred).
func (c *Classifier) rank(label string) int {
	for i, p := range c.preferred {
		if p == label {
			return i
		}
	}
	return len(c.preferred)
}

// addClass inserts a new label after every class of equal or lower rank.
func (c *Classifier) addClass(label string) {
	r := c.rank(label)
	i := len(c.classes)
	for i > 0 && c.rank(c.classes[i-1]) > r {
		i--
	}
	c.classes = slices.Insert(c.classes, i, label)
}

// add inserts a vector without locking or copying.
func (c *Classifier) add(vec []float32, label string) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}
	if c.dim == 0 {
		c.dim = len(vec)
	} else if len(vec) != c.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dim)
	}

	if _, ok := c.dataset[label]; !ok {
		c.addClass(label)
	}
	c.dataset[label] = append(c.dataset[label], vec)
	c.examples = append(c.examples, example{vec: vec, label: label})

	return nil
}

// AddExample stores a copy of vec under label.
func (c *Classifier) AddExample(vec []float32, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := make([]float32, len(vec))
	copy(cp, vec)
	return c.add(cp, label)
}

// distance is the cosine distance between a and b. Degenerate (zero)
// vectors are as far away as possible.
func distance(a, b []float32) float32 {
	d := hnsw.CosineDistance(a, b)
	if math.IsNaN(float64(d)) {
		return 2
	}
	return d
}

// Predict classifies vec by majority vote among its k nearest stored examples.
// Equal distances go to the example stored first; equal votes go to the
// class that comes first in Classes().
func (c *Classifier) Predict(vec []float32, k int) (Prediction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(vec) == 0 {
		return Prediction{}, ErrEmptyVector
	}
	if len(c.examples) == 0 {
		return Prediction{}, ErrEmpty
	}
	if len(vec) != c.dim {
		return Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dim)
	}
	if k <= 0 {
		k = DefaultK
	}
	k = min(k, len(c.examples))

	type neighbor struct {
		index int
		dist  float32
	}
	neighbors := make([]neighbor, len(c.examples))
	for i, e := range c.examples {
		neighbors[i] = neighbor{index: i, dist: distance(vec, e.vec)}
	}
	slices.SortStableFunc(neighbors, func(a, b neighbor) int {
		return cmp.Compare(a.dist, b.dist)
	})

	votes := make(map[string]int, len(c.classes))
	for _, n := range neighbors[:k] {
		votes[c.examples[n.index].label]++
	}

	pred := Prediction{
		ClassIndex:  -1,
		Confidences: make(map[string]float64, len(c.classes)),
	}
	best := -1
	for i, label := range c.classes {
		v := votes[label]
		pred.Confidences[label] = float64(v) / float64(k)
		if v > best {
			best = v
			pred.Label = label
			pred.ClassIndex = i
		}
	}

	return pred, nil
}

// NumClasses returns the number of distinct labels with at least one example.
func (c *Classifier) NumClasses() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.classes)
}

// Classes returns the labels in class order.
func (c *Classifier) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

// Count returns the number of examples stored under label.
func (c *Classifier) Count(label string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dataset[label])
}

// Dim returns the dimensionality of stored vectors, or 0 when empty.
func (c *Classifier) Dim() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim
}

// Dataset returns a deep copy of the stored examples.
func (c *Classifier) Dataset() Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Dataset, len(c.dataset))
	for label, vecs := range c.dataset {
		cp := make([][]float32, len(vecs))
		for i, v := range vecs {
			cp[i] = append([]float32(nil), v...)
		}
		out[label] = cp
	}
	return out
}

// SetDataset replaces all stored examples with ds. Labels are added in sorted
// order, so labels outside the preferred set keep a stable order across
// restarts. On error the classifier is left empty.
func (c *Classifier) SetDataset(ds Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()

	labels := make([]string, 0, len(ds))
	for label := range ds {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		for _, v := range ds[label] {
			if err := c.add(append([]float32(nil), v...), label); err != nil {
				c.reset()
				return fmt.Errorf("label %q: %w", label, err)
			}
		}
	}

	return nil
}

// ClearAll removes every stored example.
func (c *Classifier) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
