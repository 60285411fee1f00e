// Package pipeline drives a single tile through the detection state machine,
// from acquisition to the result sink.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oceansentry/slick-detect/internal/classifier"
	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/feature"
	"github.com/oceansentry/slick-detect/internal/geo"
	"github.com/oceansentry/slick-detect/internal/observability"
	"github.com/oceansentry/slick-detect/internal/postprocess"
	"github.com/oceansentry/slick-detect/internal/raster"
)

// Step names one state of the per-tile machine. A tile advances through the
// steps in order; ERROR is reachable from any of them.
type Step string

const (
	StepAcquiring          Step = "ACQUIRING"
	StepPreprocessing      Step = "PREPROCESSING"
	StepPatching           Step = "PATCHING"
	StepExtractingFeatures Step = "EXTRACTING_FEATURES"
	StepInferring          Step = "INFERRING"
	StepGeolocating        Step = "GEOLOCATING"
	StepPostprocessing     Step = "POSTPROCESSING"
	StepStoring            Step = "STORING"
	StepDone               Step = "DONE"
	StepError              Step = "ERROR"
)

// ResultSink receives the final merged detections for one tile.
type ResultSink interface {
	Store(ctx context.Context, detections []domain.Detection) error
}

// ProcessedChecker answers whether a tile has already completed a full run.
// Backed by the scheduler's persistent pipeline state.
type ProcessedChecker interface {
	IsProcessed(aoiName, tileID string) bool
}

// TileResult reports the outcome of one tile run to the scheduler.
type TileResult struct {
	TileID     string
	Step       Step // DONE or ERROR
	FailedStep Step // step that raised Err, set only when Step is ERROR
	Detections []domain.Detection
	RawCount   int // positive patches before postprocessing
	Skipped    bool
	Err        error
}

// Orchestrator owns the per-tile state machine. It never retries internally;
// a failed tile is returned to the scheduler, which decides whether and when
// to try again.
type Orchestrator struct {
	catalog      domain.TileCatalog
	preprocessor raster.Preprocessor
	patcher      raster.Extractor
	features     feature.Extractor
	model        classifier.Classifier
	clusterer    postprocess.Params
	sink         ResultSink
	processed    ProcessedChecker
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates an Orchestrator with the given stages and observability.
func New(
	catalog domain.TileCatalog,
	preprocessor raster.Preprocessor,
	patcher raster.Extractor,
	features feature.Extractor,
	model classifier.Classifier,
	clusterer postprocess.Params,
	sink ResultSink,
	processed ProcessedChecker,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		catalog:      catalog,
		preprocessor: preprocessor,
		patcher:      patcher,
		features:     features,
		model:        model,
		clusterer:    clusterer,
		sink:         sink,
		processed:    processed,
		logger:       logger,
		metrics:      metrics,
	}
}

// ProcessTile runs one tile through every step. A tile already recorded as
// processed short-circuits to DONE with zero detections, so replaying a
// catalog page after a restart is safe.
func (o *Orchestrator) ProcessTile(ctx context.Context, aoi domain.AreaOfInterest, tile domain.TileDescriptor) TileResult {
	if o.processed.IsProcessed(aoi.Name, tile.ID) {
		o.metrics.TilesSkipped.Inc()
		o.logger.Debug("tile already processed, skipping", "aoi", aoi.Name, "tile", tile.ID)
		return TileResult{TileID: tile.ID, Step: StepDone, Skipped: true}
	}

	tileStart := time.Now()

	raw, err := o.acquire(ctx, tile)
	if err != nil {
		return o.fail(aoi, tile, StepAcquiring, err)
	}

	grid, err := o.preprocess(tile, raw)
	if err != nil {
		return o.fail(aoi, tile, StepPreprocessing, err)
	}

	patches, err := o.patch(grid)
	if err != nil {
		return o.fail(aoi, tile, StepPatching, err)
	}

	matrix, err := o.extractFeatures(patches)
	if err != nil {
		return o.fail(aoi, tile, StepExtractingFeatures, err)
	}

	labels, confidences, err := o.infer(ctx, matrix)
	if err != nil {
		return o.fail(aoi, tile, StepInferring, err)
	}

	raws := o.geolocate(aoi, tile, grid, patches, labels, confidences)

	final := o.postprocessStage(raws)

	if err := o.store(ctx, tile, final); err != nil {
		return o.fail(aoi, tile, StepStoring, err)
	}

	o.metrics.TilesProcessed.Inc()
	o.metrics.TileDuration.Observe(time.Since(tileStart).Seconds())
	o.logger.Info("tile processed",
		"aoi", aoi.Name,
		"tile", tile.ID,
		"patches", len(patches),
		"raw_detections", len(raws),
		"detections", len(final),
	)

	return TileResult{TileID: tile.ID, Step: StepDone, Detections: final, RawCount: len(raws)}
}

func (o *Orchestrator) acquire(ctx context.Context, tile domain.TileDescriptor) (*domain.RawRaster, error) {
	defer o.observeStage("acquire", time.Now())
	raw, err := o.catalog.Fetch(ctx, tile.DownloadRef)
	if err != nil {
		var acqErr *domain.AcquisitionError
		if !errors.As(err, &acqErr) {
			err = &domain.AcquisitionError{TileID: tile.ID, Err: err}
		}
		return nil, err
	}
	return raw, nil
}

func (o *Orchestrator) preprocess(tile domain.TileDescriptor, raw *domain.RawRaster) (*raster.Grid, error) {
	defer o.observeStage("preprocess", time.Now())
	return o.preprocessor.Run(tile.ID, raw)
}

func (o *Orchestrator) patch(grid *raster.Grid) ([]raster.Patch, error) {
	defer o.observeStage("patch", time.Now())
	return o.patcher.Extract(grid)
}

func (o *Orchestrator) extractFeatures(patches []raster.Patch) ([][]float64, error) {
	defer o.observeStage("features", time.Now())
	windows := make([][][]float64, len(patches))
	for i, p := range patches {
		windows[i] = p.Pixels
	}
	return o.features.Matrix(windows)
}

func (o *Orchestrator) infer(ctx context.Context, matrix [][]float64) ([]int, []float64, error) {
	defer o.observeStage("infer", time.Now())
	return o.model.PredictBatch(ctx, matrix)
}

// geolocate places positive patches on the map and keeps those inside the
// AOI. A degenerate geotransform drops the affected patches, never the tile.
func (o *Orchestrator) geolocate(
	aoi domain.AreaOfInterest,
	tile domain.TileDescriptor,
	grid *raster.Grid,
	patches []raster.Patch,
	labels []int,
	confidences []float64,
) []domain.RawDetection {
	conv, err := geo.NewConverter(grid.Transform, grid.CRS)
	if err != nil {
		o.logger.Warn("coordinate conversion unavailable, dropping all patches",
			"tile", tile.ID, "error", err)
		o.metrics.PatchesDropped.Add(float64(countPositive(labels)))
		return nil
	}

	raws := make([]domain.RawDetection, 0)
	for i, p := range patches {
		if labels[i] != 1 {
			continue
		}
		center := conv.WindowCenter(p.Row, p.Col, p.Size)
		if !aoi.Contains(center.Lon, center.Lat) {
			continue
		}
		raws = append(raws, domain.RawDetection{
			TileID:     tile.ID,
			PatchIndex: p.Index,
			Confidence: confidences[i],
			Center:     center,
			Bounds:     conv.WindowEnvelope(p.Row, p.Col, p.Size),
		})
	}
	o.metrics.DetectionsRaw.Add(float64(len(raws)))
	return raws
}

func (o *Orchestrator) postprocessStage(raws []domain.RawDetection) []domain.Detection {
	defer o.observeStage("postprocess", time.Now())
	final := postprocess.Reduce(postprocess.FromRaw(raws), o.clusterer)
	o.metrics.DetectionsFinal.Add(float64(len(final)))
	return final
}

func (o *Orchestrator) store(ctx context.Context, tile domain.TileDescriptor, detections []domain.Detection) error {
	defer o.observeStage("store", time.Now())
	if err := o.sink.Store(ctx, detections); err != nil {
		var storeErr *domain.StorageError
		if !errors.As(err, &storeErr) {
			err = &domain.StorageError{TileID: tile.ID, Err: err}
		}
		return err
	}
	return nil
}

func (o *Orchestrator) fail(aoi domain.AreaOfInterest, tile domain.TileDescriptor, step Step, err error) TileResult {
	o.logger.Error("tile step failed",
		"aoi", aoi.Name,
		"tile", tile.ID,
		"step", string(step),
		"error", err,
	)
	return TileResult{TileID: tile.ID, Step: StepError, FailedStep: step, Err: err}
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	o.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func countPositive(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == 1 {
			n++
		}
	}
	return n
}
