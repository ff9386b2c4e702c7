package ml

import (
	"fmt"
	"strings"
)

// ArtifactLoadError reports a model or scaler file that could not be read or decoded.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load %s artifact %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// ShapeMismatchError reports a feature vector whose width or key set disagrees
// with what the artifacts expect.
type ShapeMismatchError struct {
	Stage      string
	Expected   int
	Got        int
	Missing    []string
	Unexpected []string
}

func (e *ShapeMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("feature shape mismatch")
	if e.Stage != "" {
		b.WriteString(" in ")
		b.WriteString(e.Stage)
	}
	fmt.Fprintf(&b, ": expected %d features, got %d", e.Expected, e.Got)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected %s", strings.Join(e.Unexpected, ", "))
	}
	return b.String()
}

// DegenerateFeatureError lists features whose reference range is zero.
type DegenerateFeatureError struct {
	Keys []string
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("degenerate features (max == min): %s", strings.Join(e.Keys, ", "))
}
