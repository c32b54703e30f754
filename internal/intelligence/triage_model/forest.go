package triage_model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Classifier maps a fused feature vector to an encoded class.
type Classifier interface {
	Predict(ctx context.Context, features []float64) (int, error)
	InputDimension() int
}

const leaf = -1

type treeFile struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forestFile struct {
	NFeatures int        `json:"n_features"`
	Classes   []int      `json:"classes"`
	Trees     []treeFile `json:"trees"`
}

// tree holds a fitted decision tree.  Leaf distributions are normalized at
// load so prediction only averages.
type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	proba       [][]float64
}

// RandomForest is an ensemble of decision trees exported from a fitted
// random forest.  Prediction averages per-tree leaf class probabilities and
// returns the class with the highest mean; the first maximum wins.
type RandomForest struct {
	nFeatures int
	classes   []int
	trees     []tree
}

// ParseRandomForest decodes and validates a forest export.
func ParseRandomForest(name string, data []byte) (*RandomForest, error) {
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactCorrupt, "decode random forest").WithDetail(name)
	}
	if f.NFeatures <= 0 {
		return nil, corrupt(name, "n_features must be positive")
	}
	if len(f.Classes) == 0 {
		return nil, corrupt(name, "forest has no classes")
	}
	if len(f.Trees) == 0 {
		return nil, corrupt(name, "forest has no trees")
	}
	rf := &RandomForest{
		nFeatures: f.NFeatures,
		classes:   append([]int(nil), f.Classes...),
		trees:     make([]tree, len(f.Trees)),
	}
	for i, tf := range f.Trees {
		t, err := buildTree(tf, f.NFeatures, len(f.Classes))
		if err != nil {
			return nil, corrupt(name, fmt.Sprintf("tree %d: %v", i, err))
		}
		rf.trees[i] = t
	}
	return rf, nil
}

// buildTree checks the node arrays.  Children must point forward, which also
// guarantees traversal terminates.
func buildTree(tf treeFile, nFeatures, nClasses int) (tree, error) {
	n := len(tf.ChildrenLeft)
	if n == 0 {
		return tree{}, fmt.Errorf("no nodes")
	}
	if len(tf.ChildrenRight) != n || len(tf.Feature) != n || len(tf.Threshold) != n || len(tf.Value) != n {
		return tree{}, fmt.Errorf("node arrays differ in length")
	}
	t := tree{
		left:      tf.ChildrenLeft,
		right:     tf.ChildrenRight,
		feature:   tf.Feature,
		threshold: tf.Threshold,
		proba:     make([][]float64, n),
	}
	for node := 0; node < n; node++ {
		l, r := tf.ChildrenLeft[node], tf.ChildrenRight[node]
		if l == leaf || r == leaf {
			if l != r {
				return tree{}, fmt.Errorf("node %d has one child", node)
			}
			if len(tf.Value[node]) != nClasses {
				return tree{}, fmt.Errorf("leaf %d has %d class values, want %d", node, len(tf.Value[node]), nClasses)
			}
			t.proba[node] = normalizedCopy(tf.Value[node])
			continue
		}
		if l <= node || l >= n || r <= node || r >= n {
			return tree{}, fmt.Errorf("node %d has out-of-order children", node)
		}
		if f := tf.Feature[node]; f < 0 || f >= nFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d", node, f)
		}
	}
	return t, nil
}

func normalizedCopy(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	for i, x := range v {
		if sum > 0 {
			out[i] = x / sum
		}
	}
	return out
}

// InputDimension implements Classifier.
func (rf *RandomForest) InputDimension() int { return rf.nFeatures }

// Classes returns the encoded class values.
func (rf *RandomForest) Classes() []int { return append([]int(nil), rf.classes...) }

// Predict implements Classifier.
func (rf *RandomForest) Predict(ctx context.Context, features []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeTimeout, "classification cancelled")
	}
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return rf.classes[best], nil
}

// PredictProba returns the mean class distribution over all trees, in class
// order.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(features) != rf.nFeatures {
		return nil, errors.Newf(errors.ErrCodeClassifierFailed,
			"classifier expects %d features, got %d", rf.nFeatures, len(features))
	}
	mean := make([]float64, len(rf.classes))
	for _, t := range rf.trees {
		node := 0
		for t.left[node] != leaf {
			if features[t.feature[node]] <= t.threshold[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		}
		for i, p := range t.proba[node] {
			mean[i] += p
		}
	}
	for i := range mean {
		mean[i] /= float64(len(rf.trees))
	}
	return mean, nil
}

// ---------------------------------------------------------------------------
// Label decoder
// ---------------------------------------------------------------------------

type labelFile struct {
	Classes []string `json:"classes"`
}

// LabelDecoder maps an encoded class back to its diagnosis label.
type LabelDecoder struct {
	classes []string
}

// ParseLabelDecoder decodes a label encoder export.
func ParseLabelDecoder(name string, data []byte) (*LabelDecoder, error) {
	var f labelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactCorrupt, "decode label encoder").WithDetail(name)
	}
	if len(f.Classes) == 0 {
		return nil, corrupt(name, "label encoder has no classes")
	}
	return &LabelDecoder{classes: f.Classes}, nil
}

// Len returns the number of labels.
func (d *LabelDecoder) Len() int { return len(d.classes) }

// Decode returns the label of class i.
func (d *LabelDecoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(d.classes) {
		return "", errors.Newf(errors.ErrCodeLabelDecodeFailed, "class %d outside label range [0, %d)", i, len(d.classes))
	}
	return d.classes[i], nil
}
