package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// AreaOfInterest is a monitored ocean region. Geometry is either a bounding
// box or a polygon, never both.
type AreaOfInterest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BBox        *BBox    `json:"bbox,omitempty"`
	Polygon     *Polygon `json:"polygon,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// Geometry returns the AOI's bounding box, derived from the polygon when the
// AOI is polygon-defined.
func (a *AreaOfInterest) Geometry() BBox {
	if a.BBox != nil {
		return *a.BBox
	}
	return a.Polygon.BBox()
}

// Contains reports whether the point lies inside the AOI geometry,
// boundary inclusive for both geometry kinds.
func (a *AreaOfInterest) Contains(lon, lat float64) bool {
	if a.BBox != nil {
		return a.BBox.Contains(lon, lat)
	}
	return a.Polygon.Contains(lon, lat)
}

func (a *AreaOfInterest) validate() error {
	if a.Name == "" {
		return fmt.Errorf("aoi name is required")
	}
	if (a.BBox == nil) == (a.Polygon == nil) {
		return fmt.Errorf("aoi %q: provide either bbox or polygon", a.Name)
	}
	if a.BBox != nil && !a.BBox.Valid() {
		return fmt.Errorf("aoi %q: bbox has no area or is out of range", a.Name)
	}
	if a.Polygon != nil && !a.Polygon.Valid() {
		return fmt.Errorf("aoi %q: polygon needs at least three vertices", a.Name)
	}
	return nil
}

// Registry holds named AOIs in insertion order. It is safe for concurrent
// use; the scheduler reads it while operators toggle regions.
type Registry struct {
	mu    sync.RWMutex
	order []string
	aois  map[string]*AreaOfInterest
}

func NewRegistry() *Registry {
	return &Registry{aois: make(map[string]*AreaOfInterest)}
}

// Add registers an AOI. It returns DuplicateNameError when the name is taken.
func (r *Registry) Add(aoi AreaOfInterest) error {
	if err := aoi.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aois[aoi.Name]; ok {
		return &DuplicateNameError{Name: aoi.Name}
	}
	r.order = append(r.order, aoi.Name)
	r.aois[aoi.Name] = &aoi
	return nil
}

// Get returns the named AOI or NotFoundError.
func (r *Registry) Get(name string) (AreaOfInterest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	aoi, ok := r.aois[name]
	if !ok {
		return AreaOfInterest{}, &NotFoundError{Name: name}
	}
	return *aoi, nil
}

// Enable marks the named AOI for monitoring.
func (r *Registry) Enable(name string) error { return r.setEnabled(name, true) }

// Disable removes the named AOI from monitoring without deleting it.
func (r *Registry) Disable(name string) error { return r.setEnabled(name, false) }

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	aoi, ok := r.aois[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	aoi.Enabled = enabled
	return nil
}

// ListEnabled returns enabled AOIs in insertion order. The order is stable
// across calls so scheduled runs visit regions deterministically.
func (r *Registry) ListEnabled() []AreaOfInterest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AreaOfInterest, 0, len(r.order))
	for _, name := range r.order {
		if aoi := r.aois[name]; aoi.Enabled {
			out = append(out, *aoi)
		}
	}
	return out
}

// LoadRegistryFile reads a JSON array of AOI definitions from disk.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aoi config: %w", err)
	}

	var aois []AreaOfInterest
	if err := json.Unmarshal(data, &aois); err != nil {
		return nil, fmt.Errorf("parse aoi config %s: %w", path, err)
	}

	reg := NewRegistry()
	for _, aoi := range aois {
		if err := reg.Add(aoi); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
