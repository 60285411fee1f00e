//go:build !gocv

package classifier

import (
	"fmt"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// LoadONNX is unavailable without the gocv build tag; the OpenCV DNN module
// is a cgo dependency the default build does not carry.
func LoadONNX(path string) (Classifier, error) {
	return nil, &domain.ModelLoadError{
		Path: path,
		Err:  fmt.Errorf("onnx backend requires a build with the gocv tag"),
	}
}
