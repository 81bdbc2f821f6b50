// Package pipeline classifies communities by facility access, clusters the
// underserved ones and synthesizes facility site recommendations.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/snapshot"
	"github.com/vivaro/vivaro/internal/spatial"
)

// EmptyIndexError is returned when a facility class has no indexed points.
type EmptyIndexError struct {
	Class model.FacilityClass
}

func (e *EmptyIndexError) Error() string {
	return fmt.Sprintf("pipeline: no %s facilities indexed", e.Class)
}

// Unwrap lets errors.Is match spatial.ErrEmptyIndex.
func (e *EmptyIndexError) Unwrap() error {
	return spatial.ErrEmptyIndex
}

// AnalysisContext bundles one snapshot with the indexes built over it and the
// settings the analysis runs with. Everything except the memoised result is
// read-only after NewContext returns.
type AnalysisContext struct {
	Snapshot *snapshot.Snapshot
	Config   *config.Config

	// Indexes holds one nearest-neighbour index per facility class; a class
	// without facilities has no entry.
	Indexes map[model.FacilityClass]*spatial.Index
	// Boxes indexes facility lon/lat for boundary containment candidates.
	Boxes map[model.FacilityClass]*spatial.PlanarIndex
	// Urban indexes the urban centers used by the reachability filter.
	Urban *spatial.Index

	mu     sync.Mutex
	result *model.Result
}

// NewContext builds every index over snap.
func NewContext(snap *snapshot.Snapshot, cfg *config.Config) (*AnalysisContext, error) {
	if snap == nil {
		return nil, eris.New("pipeline: nil snapshot")
	}
	if cfg == nil {
		return nil, eris.New("pipeline: nil config")
	}

	ac := &AnalysisContext{
		Snapshot: snap,
		Config:   cfg,
		Indexes:  make(map[model.FacilityClass]*spatial.Index, len(model.FacilityClasses)),
		Boxes:    make(map[model.FacilityClass]*spatial.PlanarIndex, len(model.FacilityClasses)),
	}

	for _, class := range model.FacilityClasses {
		pts := snap.Points(class)
		if len(pts) == 0 {
			continue
		}

		idx, err := spatial.Build(pts)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: index %s", class)
		}
		ac.Indexes[class] = idx

		xs := make([]float64, len(pts))
		ys := make([]float64, len(pts))
		for i, p := range pts {
			xs[i], ys[i] = p.Lon, p.Lat
		}
		box, err := spatial.NewPlanarIndex(xs, ys)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: box index %s", class)
		}
		ac.Boxes[class] = box
	}

	urban := snap.UrbanCenters
	if len(urban) == 0 {
		urban = snap.CommunityLocations()
	}
	if len(urban) > 0 {
		idx, err := spatial.Build(urban)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: index urban centers")
		}
		ac.Urban = idx
	}

	return ac, nil
}

// index returns the nearest-neighbour index of a class.
func (ac *AnalysisContext) index(class model.FacilityClass) (*spatial.Index, error) {
	idx, ok := ac.Indexes[class]
	if !ok || idx == nil {
		return nil, &EmptyIndexError{Class: class}
	}
	return idx, nil
}

// densityThreshold returns the configured density threshold of a class.
func (ac *AnalysisContext) densityThreshold(class model.FacilityClass) float64 {
	if class == model.ClassHealthcare {
		return ac.Config.Analysis.HealthcareDensityThreshold
	}
	return ac.Config.Analysis.SchoolDensityThreshold
}

// Result runs the analysis once per context and returns the memoised
// result afterwards. Failed runs are not memoised.
func (ac *AnalysisContext) Result(ctx context.Context) (*model.Result, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.result != nil {
		return ac.result, nil
	}
	res, err := Run(ctx, ac)
	if err != nil {
		return nil, err
	}
	ac.result = res
	return res, nil
}
