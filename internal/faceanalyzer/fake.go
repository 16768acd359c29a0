package faceanalyzer

import "context"

// Fake is an in-memory FaceAnalyzer for tests, following the corpus's
// hand-written-fake convention over generated mocks. Detections is keyed
// by the exact bytes passed to DetectAndEmbed so a test can map
// fixture-image-bytes to a canned response.
type Fake struct {
	Detections map[string][]Detection
	Err        error
}

// NewFake returns an empty Fake analyzer.
func NewFake() *Fake {
	return &Fake{Detections: make(map[string][]Detection)}
}

func (f *Fake) DetectAndEmbed(ctx context.Context, imageData []byte) ([]Detection, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Detections[string(imageData)], nil
}
