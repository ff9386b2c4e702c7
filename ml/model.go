package ml

// Classifier is a trained binary classifier consuming scaled positional vectors.
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
	InputWidth() int
}

// Transformer is a fitted scaler applied before the classifier.
type Transformer interface {
	Transform(features []float64) ([]float64, error)
	InputWidth() int
}

// Closer is implemented by artifacts holding native resources.
type Closer interface {
	Close() error
}

// namedArtifact is implemented by artifacts that declare the feature order
// they were fitted on.
type namedArtifact interface {
	FeatureNames() []string
}
