package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/feature"
	"github.com/oceansentry/slick-detect/internal/observability"
	"github.com/oceansentry/slick-detect/internal/postprocess"
	"github.com/oceansentry/slick-detect/internal/raster"
)

type fakeCatalog struct {
	raster   *domain.RawRaster
	fetchErr error
	fetched  int
}

func (f *fakeCatalog) Search(context.Context, domain.BBox, time.Time, time.Time) ([]domain.TileDescriptor, error) {
	return nil, nil
}

func (f *fakeCatalog) Fetch(context.Context, string) (*domain.RawRaster, error) {
	f.fetched++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.raster, nil
}

type stubClassifier struct {
	confidence float64
	err        error
}

func (s *stubClassifier) FeatureCount() int { return feature.Count(feature.LevelMinimal) }

func (s *stubClassifier) PredictBatch(_ context.Context, matrix [][]float64) ([]int, []float64, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	labels := make([]int, len(matrix))
	confs := make([]float64, len(matrix))
	for i := range matrix {
		labels[i] = 1
		confs[i] = s.confidence
	}
	return labels, confs, nil
}

type fakeSink struct {
	stored [][]domain.Detection
	err    error
}

func (f *fakeSink) Store(_ context.Context, detections []domain.Detection) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, detections)
	return nil
}

type fakeChecker struct {
	processed map[string]bool
}

func (f *fakeChecker) IsProcessed(aoiName, tileID string) bool {
	return f.processed[aoiName+"/"+tileID]
}

// testRaster is a 4x4 grid over a small box near (5.0, 4.5) in plain WGS-84,
// 0.01 degrees per pixel.
func testRaster() *domain.RawRaster {
	px := make([][]float64, 4)
	for r := range px {
		px[r] = make([]float64, 4)
		for c := range px[r] {
			px[r][c] = float64(r*4+c) + 1
		}
	}
	return &domain.RawRaster{
		Pixels:    px,
		Transform: [6]float64{0.01, 0, 5.0, 0, -0.01, 4.5},
		CRS:       "EPSG:4326",
	}
}

func testAOI() domain.AreaOfInterest {
	return domain.AreaOfInterest{
		Name:    "gulf-test",
		BBox:    &domain.BBox{MinLon: 4.9, MinLat: 4.3, MaxLon: 5.2, MaxLat: 4.6},
		Enabled: true,
	}
}

func newTestOrchestrator(catalog *fakeCatalog, model *stubClassifier, sink *fakeSink, checker *fakeChecker) *Orchestrator {
	return New(
		catalog,
		raster.Preprocessor{Normalization: raster.NormalizeMinMax},
		raster.Extractor{Size: 2, Stride: 2},
		feature.Extractor{Level: feature.LevelMinimal},
		model,
		postprocess.Standard,
		sink,
		checker,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
	)
}

func TestProcessTileHappyPath(t *testing.T) {
	catalog := &fakeCatalog{raster: testRaster()}
	sink := &fakeSink{}
	o := newTestOrchestrator(catalog, &stubClassifier{confidence: 0.9}, sink, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1", DownloadRef: "ref-1"})

	require.NoError(t, res.Err)
	assert.Equal(t, StepDone, res.Step)
	assert.False(t, res.Skipped)

	// Four 2x2 patches, all positive, all within ~3 km of each other, so the
	// standard preset merges them into one detection with confidence 0.9.
	assert.Equal(t, 4, res.RawCount)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, 4, res.Detections[0].MemberCount)
	assert.InDelta(t, 0.9, res.Detections[0].MaxConfidence, 1e-12)

	require.Len(t, sink.stored, 1)
	assert.Equal(t, res.Detections, sink.stored[0])
}

func TestProcessTileSkipsProcessed(t *testing.T) {
	catalog := &fakeCatalog{raster: testRaster()}
	checker := &fakeChecker{processed: map[string]bool{"gulf-test/t1": true}}
	o := newTestOrchestrator(catalog, &stubClassifier{confidence: 0.9}, &fakeSink{}, checker)

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	assert.Equal(t, StepDone, res.Step)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Detections)
	assert.Zero(t, catalog.fetched, "skipped tile must not be fetched")
}

func TestProcessTileAcquisitionFailure(t *testing.T) {
	catalog := &fakeCatalog{fetchErr: errors.New("catalog unreachable")}
	o := newTestOrchestrator(catalog, &stubClassifier{confidence: 0.9}, &fakeSink{}, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	assert.Equal(t, StepError, res.Step)
	assert.Equal(t, StepAcquiring, res.FailedStep)
	var acqErr *domain.AcquisitionError
	assert.True(t, errors.As(res.Err, &acqErr))
}

func TestProcessTilePreprocessingFailure(t *testing.T) {
	nan := math.NaN()
	raw := testRaster()
	for r := range raw.Pixels {
		for c := range raw.Pixels[r] {
			raw.Pixels[r][c] = nan
		}
	}
	o := newTestOrchestrator(&fakeCatalog{raster: raw}, &stubClassifier{confidence: 0.9}, &fakeSink{}, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	assert.Equal(t, StepError, res.Step)
	assert.Equal(t, StepPreprocessing, res.FailedStep)
	var preErr *domain.PreprocessingError
	assert.True(t, errors.As(res.Err, &preErr))
}

func TestProcessTileInferenceFailure(t *testing.T) {
	model := &stubClassifier{err: &domain.InferenceError{Want: 10, Got: 3}}
	o := newTestOrchestrator(&fakeCatalog{raster: testRaster()}, model, &fakeSink{}, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	assert.Equal(t, StepError, res.Step)
	assert.Equal(t, StepInferring, res.FailedStep)
}

func TestProcessTileSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	o := newTestOrchestrator(&fakeCatalog{raster: testRaster()}, &stubClassifier{confidence: 0.9}, sink, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	assert.Equal(t, StepError, res.Step)
	assert.Equal(t, StepStoring, res.FailedStep)
	var storeErr *domain.StorageError
	assert.True(t, errors.As(res.Err, &storeErr))
}

// A tile with an unusable geotransform loses its patches but still completes
// and records zero detections.
func TestProcessTileDegenerateTransform(t *testing.T) {
	raw := testRaster()
	raw.Transform = [6]float64{}
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeCatalog{raster: raw}, &stubClassifier{confidence: 0.9}, sink, &fakeChecker{})

	res := o.ProcessTile(context.Background(), testAOI(), domain.TileDescriptor{ID: "t1"})

	require.NoError(t, res.Err)
	assert.Equal(t, StepDone, res.Step)
	assert.Zero(t, res.RawCount)
	assert.Empty(t, res.Detections)
	require.Len(t, sink.stored, 1)
}

func TestProcessTileFiltersOutsideAOI(t *testing.T) {
	aoi := domain.AreaOfInterest{
		Name:    "far-away",
		BBox:    &domain.BBox{MinLon: 100, MinLat: 10, MaxLon: 101, MaxLat: 11},
		Enabled: true,
	}
	o := newTestOrchestrator(&fakeCatalog{raster: testRaster()}, &stubClassifier{confidence: 0.9}, &fakeSink{}, &fakeChecker{})

	res := o.ProcessTile(context.Background(), aoi, domain.TileDescriptor{ID: "t1"})

	require.NoError(t, res.Err)
	assert.Zero(t, res.RawCount)
	assert.Empty(t, res.Detections)
}
