package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DecisionTree evaluates an exported binary decision tree. Nodes are stored
// flat; children are indices into Nodes.
type DecisionTree struct {
	NFeatures int        `json:"n_features"`
	Features  []string   `json:"feature_names,omitempty"`
	Nodes     []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx    int       `json:"feature_idx"`
	Threshold     float64   `json:"threshold"`
	LeftChild     int       `json:"left_child"`
	RightChild    int       `json:"right_child"`
	ClassLabel    int       `json:"class_label"`
	IsLeaf        bool      `json:"is_leaf"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

func (dt *DecisionTree) InputWidth() int {
	return dt.NFeatures
}

func (dt *DecisionTree) FeatureNames() []string {
	return dt.Features
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	return leaf.ClassLabel, nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	if len(leaf.Probabilities) == 2 {
		return append([]float64(nil), leaf.Probabilities...), nil
	}
	if leaf.ClassLabel == 0 {
		return []float64{1, 0}, nil
	}
	return []float64{0, 1}, nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, errors.New("model not loaded")
	}
	if dt.NFeatures > 0 && len(features) != dt.NFeatures {
		return TreeNode{}, &ShapeMismatchError{Stage: "decision tree", Expected: dt.NFeatures, Got: len(features)}
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("tree contains a cycle")
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tree DecisionTree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return err
	}
	if len(tree.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range tree.Nodes {
		if node.IsLeaf && len(node.Probabilities) != 0 && len(node.Probabilities) != 2 {
			return fmt.Errorf("node %d: expected 2 probabilities, got %d", i, len(node.Probabilities))
		}
	}
	*dt = tree
	return nil
}
