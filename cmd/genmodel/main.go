// Command genmodel writes a logistic-regression artifact usable by the
// detector, with fixed weights seeded from the feature level. The artifact
// is meant for local smoke runs and test fixtures, not real detection.
//
// Usage:
//
//	go run ./cmd/genmodel -level standard -out model.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/oceansentry/slick-detect/internal/feature"
)

type artifact struct {
	FeatureCount int       `json:"feature_count"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Threshold    float64   `json:"threshold"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	levelName := flag.String("level", "standard", "feature level: minimal, standard, or comprehensive")
	out := flag.String("out", "model.json", "output path for the artifact")
	threshold := flag.Float64("threshold", 0.5, "decision threshold in [0, 1]")
	flag.Parse()

	level, err := feature.ParseLevel(*levelName)
	if err != nil {
		return err
	}

	names := feature.Names(level)
	weights := make([]float64, len(names))
	for i, name := range names {
		weights[i] = toyWeight(name)
	}

	data, err := json.MarshalIndent(artifact{
		FeatureCount: len(weights),
		Weights:      weights,
		Bias:         -1.0,
		Threshold:    *threshold,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d features (%s)\n", *out, len(weights), level)
	return nil
}

// toyWeight encodes the rough physics of slicks on SAR: dark (low mean),
// smooth (low std, low entropy) surfaces score positive. Everything else
// gets a small nonzero weight so the artifact exercises every column.
func toyWeight(name string) float64 {
	switch name {
	case "mean", "median":
		return -2.0
	case "std", "entropy", "lbp_entropy":
		return -1.0
	case "glcm_homogeneity", "energy":
		return 1.5
	default:
		return 0.1
	}
}
