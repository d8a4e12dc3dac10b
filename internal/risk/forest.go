package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FeatureNames is the required column order of every feature row.
var FeatureNames = []string{"rainfall_mm", "river_level_m"}

// Forest is a random-forest classifier exported from training as JSON.
// Each tree votes with the normalized class distribution of the leaf it reaches;
// the class with the highest mean probability wins.
type Forest struct {
	Features []string `json:"features"`
	Classes  []int    `json:"classes"`
	Trees    []Tree   `json:"trees"`
}

// Tree is a binary decision tree stored as a flat node list rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Feature, Threshold, Left, Right) or a leaf (Leaf, Value).
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// LoadForest reads and validates a forest artifact. A missing file yields an error
// wrapping ErrModelUnavailable; any other problem wraps ErrInvalidArtifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes and validates a forest artifact.
func ParseForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) validate() error {
	if len(f.Features) != len(FeatureNames) {
		return fmt.Errorf("%w: features %v, want %v", ErrInvalidArtifact, f.Features, FeatureNames)
	}
	for i, name := range FeatureNames {
		if f.Features[i] != name {
			return fmt.Errorf("%w: features %v, want %v", ErrInvalidArtifact, f.Features, FeatureNames)
		}
	}
	if len(f.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidArtifact)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidArtifact)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidArtifact, ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("%w: tree %d node %d has %d values for %d classes", ErrInvalidArtifact, ti, ni, len(n.Value), len(f.Classes))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrInvalidArtifact, ti, ni, n.Feature)
			}
			// Children must point forward so traversal always terminates.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children (%d, %d)", ErrInvalidArtifact, ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Predict implements Model.
func (f *Forest) Predict(rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	proba := make([]float64, len(f.Classes))
	for r, row := range rows {
		if len(row) != len(f.Features) {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrPrediction, r, len(row), len(f.Features))
		}
		for i := range proba {
			proba[i] = 0
		}
		for _, t := range f.Trees {
			leaf := t.leaf(row)
			var sum float64
			for _, v := range leaf.Value {
				sum += v
			}
			if sum <= 0 {
				continue
			}
			for i, v := range leaf.Value {
				proba[i] += v / sum
			}
		}
		best := 0
		for i := 1; i < len(proba); i++ {
			if proba[i] > proba[best] {
				best = i
			}
		}
		out[r] = f.Classes[best]
	}
	return out, nil
}

func (t Tree) leaf(row []float64) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
