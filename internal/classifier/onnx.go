//go:build gocv

package classifier

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// ONNX runs a neural classifier through OpenCV's DNN module. The network
// must take a (batch, features) float32 input and emit one positive-class
// probability per row.
type ONNX struct {
	net      gocv.Net
	features int
}

// LoadONNX loads the network and probes its input width with a single
// forward pass stub. OpenCV reports shape errors only at Forward time, so
// the probe keeps bad artifacts fatal at startup instead of mid-run.
func LoadONNX(path string) (Classifier, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, &domain.ModelLoadError{Path: path, Err: fmt.Errorf("opencv could not parse network")}
	}

	features, err := probeInputWidth(&net)
	if err != nil {
		net.Close()
		return nil, &domain.ModelLoadError{Path: path, Err: err}
	}
	return &ONNX{net: net, features: features}, nil
}

func (o *ONNX) FeatureCount() int { return o.features }

// Close releases the underlying network. Safe to call once at shutdown.
func (o *ONNX) Close() error { return o.net.Close() }

func (o *ONNX) PredictBatch(ctx context.Context, matrix [][]float64) ([]int, []float64, error) {
	if err := validateMatrix(matrix, o.features); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(matrix) == 0 {
		return nil, nil, nil
	}

	input := gocv.NewMatWithSize(len(matrix), o.features, gocv.MatTypeCV32F)
	defer input.Close()
	for i, row := range matrix {
		for j, v := range row {
			input.SetFloatAt(i, j, float32(v))
		}
	}

	o.net.SetInput(input, "")
	out := o.net.Forward("")
	defer out.Close()
	if out.Empty() || out.Total() < len(matrix) {
		return nil, nil, fmt.Errorf("network returned %d outputs for %d rows", out.Total(), len(matrix))
	}

	labels := make([]int, len(matrix))
	confidences := make([]float64, len(matrix))
	for i := range matrix {
		p := float64(out.GetFloatAt(i, out.Cols()-1))
		confidences[i] = p
		if p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels, confidences, nil
}

// probeInputWidth walks candidate widths until a forward pass succeeds.
// OpenCV panics on shape mismatch, so each attempt is recovered.
func probeInputWidth(net *gocv.Net) (features int, err error) {
	for _, width := range []int{10, 18, 19} {
		if tryForward(net, width) {
			return width, nil
		}
	}
	return 0, fmt.Errorf("input width is none of the supported feature counts")
}

func tryForward(net *gocv.Net, width int) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	probe := gocv.NewMatWithSize(1, width, gocv.MatTypeCV32F)
	defer probe.Close()
	net.SetInput(probe, "")
	out := net.Forward("")
	defer out.Close()
	return !out.Empty()
}
