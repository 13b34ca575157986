// Package inference evaluates a pre-trained random forest exported as JSON.
package inference

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"Go2NetGuard/internal/model"

	"github.com/zeebo/blake3"
)

// ErrWidthMismatch is returned when a vector does not have the width the
// model was trained on.
var ErrWidthMismatch = errors.New("feature width mismatch")

// tree mirrors the arrays of a fitted decision tree. A node is a leaf when
// children_left is -1; value holds the per-class weights of each node.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`

	// attack probability per leaf, filled by validate
	leafProb []float64
}

type forestArtifact struct {
	ModelType    string   `json:"model_type"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names"`
	Trees        []*tree  `json:"trees"`
}

// Forest is the Inference Engine. After loading it is immutable and safe for
// concurrent use.
type Forest struct {
	nFeatures    int
	featureNames []string
	trees        []*tree
	threshold    float64
	digest       string
}

// Load reads and validates a forest artifact. threshold is the attack
// probability above which a vector is labelled Attack.
func Load(path string, threshold float64) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	f, err := Parse(data, threshold)
	if err != nil {
		return nil, fmt.Errorf("model artifact '%s': %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a forest artifact held in memory.
func Parse(data []byte, threshold float64) (*Forest, error) {
	var art forestArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("corrupt artifact: %w", err)
	}
	if art.ModelType != "" && art.ModelType != "random_forest" && art.ModelType != "decision_tree" {
		return nil, fmt.Errorf("unsupported model_type '%s'", art.ModelType)
	}
	if art.NFeatures <= 0 {
		return nil, fmt.Errorf("n_features must be positive, got %d", art.NFeatures)
	}
	if len(art.FeatureNames) != 0 && len(art.FeatureNames) != art.NFeatures {
		return nil, fmt.Errorf("feature_names has %d entries, n_features is %d", len(art.FeatureNames), art.NFeatures)
	}
	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("artifact contains no trees")
	}
	for i, t := range art.Trees {
		if err := t.validate(art.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be within (0,1), got %v", threshold)
	}

	sum := blake3.Sum256(data)
	return &Forest{
		nFeatures:    art.NFeatures,
		featureNames: art.FeatureNames,
		trees:        art.Trees,
		threshold:    threshold,
		digest:       hex.EncodeToString(sum[:8]),
	}, nil
}

func (t *tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	t.leafProb = make([]float64, n)
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == -1 {
			if r != -1 {
				return fmt.Errorf("node %d has a right child but no left child", i)
			}
			p, err := attackProbability(t.Value[i])
			if err != nil {
				return fmt.Errorf("leaf %d: %w", i, err)
			}
			t.leafProb[i] = p
			continue
		}
		// Children always follow their parent, which rules out cycles.
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d outside [0,%d)", i, f, nFeatures)
		}
	}
	return nil
}

// attackProbability normalizes the class weights of a leaf. Class 1 is Attack.
func attackProbability(v []float64) (float64, error) {
	if len(v) != 2 {
		return 0, fmt.Errorf("expected 2 class weights, got %d", len(v))
	}
	total := v[0] + v[1]
	if v[0] < 0 || v[1] < 0 || total <= 0 {
		return 0, fmt.Errorf("invalid class weights %v", v)
	}
	return v[1] / total, nil
}

// Width returns the vector width the model was trained on.
func (f *Forest) Width() int {
	return f.nFeatures
}

// Digest identifies the loaded artifact.
func (f *Forest) Digest() string {
	return f.digest
}

// CheckShape verifies that the extractor output matches the training shape.
// names may be nil when the caller has no names to compare.
func (f *Forest) CheckShape(width int, names []string) error {
	if width != f.nFeatures {
		return fmt.Errorf("%w: extractor produces %d features, model expects %d", ErrWidthMismatch, width, f.nFeatures)
	}
	if len(f.featureNames) == 0 || names == nil {
		return nil
	}
	if len(names) != len(f.featureNames) {
		return fmt.Errorf("%w: %d feature names for %d features", ErrWidthMismatch, len(names), f.nFeatures)
	}
	for i := range names {
		if names[i] != f.featureNames[i] {
			return fmt.Errorf("%w: feature %d is '%s' but model was trained on '%s'", ErrWidthMismatch, i, names[i], f.featureNames[i])
		}
	}
	return nil
}

// Predict classifies a vector. The only error is ErrWidthMismatch, which
// indicates a programming error rather than a bad event.
func (f *Forest) Predict(v model.FeatureVector) (model.Prediction, error) {
	if len(v) != f.nFeatures {
		return model.Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(v), f.nFeatures)
	}

	var sum float64
	for _, t := range f.trees {
		sum += t.leafProb[t.leaf(v)]
	}
	score := sum / float64(len(f.trees))

	p := model.Prediction{Label: model.LabelNormal, Score: score}
	if score > f.threshold {
		p.Label = model.LabelAttack
	}
	return p, nil
}

func (t *tree) leaf(v model.FeatureVector) int {
	i := 0
	for t.ChildrenLeft[i] != -1 {
		if v[t.Feature[i]] <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}
	return i
}
