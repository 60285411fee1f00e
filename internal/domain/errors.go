package domain

import "fmt"

// DuplicateNameError is returned when adding an AOI whose name is taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("aoi %q already registered", e.Name)
}

// NotFoundError is returned when an AOI name is not in the registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("aoi %q not found", e.Name)
}

// AcquisitionError wraps a tile search or fetch failure. Acquisition
// failures are transient by assumption and retried by the scheduler.
type AcquisitionError struct {
	TileID string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.TileID == "" {
		return fmt.Sprintf("tile acquisition: %v", e.Err)
	}
	return fmt.Sprintf("tile acquisition %s: %v", e.TileID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// PreprocessingError marks a raster as unreadable or malformed. Data
// problems are not transient, so the tile is skipped rather than retried.
type PreprocessingError struct {
	TileID string
	Err    error
}

func (e *PreprocessingError) Error() string {
	return fmt.Sprintf("preprocess tile %s: %v", e.TileID, e.Err)
}

func (e *PreprocessingError) Unwrap() error { return e.Err }

// ModelLoadError is fatal: the scheduler must not start its loop without a
// loadable classifier artifact.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load classifier %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError indicates a malformed feature matrix, typically a column
// count that does not match the loaded model's contract.
type InferenceError struct {
	Want int
	Got  int
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("feature matrix has %d columns, model expects %d", e.Got, e.Want)
}

// CoordinateConversionError indicates a degenerate geotransform. The
// affected patch is dropped; the tile otherwise continues.
type CoordinateConversionError struct {
	Reason string
}

func (e *CoordinateConversionError) Error() string {
	return "coordinate conversion: " + e.Reason
}

// StorageError wraps a result sink failure. The pipeline state is not
// advanced until the sink succeeds, so the tile is retried.
type StorageError struct {
	TileID string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store results for tile %s: %v", e.TileID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
