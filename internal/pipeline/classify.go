package pipeline

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/vivaro/vivaro/internal/geo"
	"github.com/vivaro/vivaro/internal/model"
)

// Classify evaluates every community in the snapshot. Records keep the
// snapshot order regardless of how the work is scheduled.
func Classify(ctx context.Context, ac *AnalysisContext) ([]model.UnderservedRecord, error) {
	for _, class := range model.FacilityClasses {
		if _, err := ac.index(class); err != nil {
			return nil, err
		}
	}

	communities := ac.Snapshot.Communities
	records := make([]model.UnderservedRecord, len(communities))

	workers := ac.Config.Analysis.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range communities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: classify cancelled")
			}
			rec, err := Evaluate(ac, &communities[i])
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Evaluate classifies a single community. A class needs a facility when its
// density is below the class threshold and its nearest facility is farther
// than the distance threshold. Communities without a boundary are judged on
// distance alone.
func Evaluate(ac *AnalysisContext, c *model.Community) (model.UnderservedRecord, error) {
	if c.Location == nil {
		return model.UnderservedRecord{}, &model.InvalidGeometryError{Feature: c.Name, Reason: "missing location"}
	}

	rec := model.UnderservedRecord{
		Community: c,
		Metrics:   make(map[model.FacilityClass]model.ServiceMetrics, len(model.FacilityClasses)),
	}
	for _, class := range model.FacilityClasses {
		idx, err := ac.index(class)
		if err != nil {
			return model.UnderservedRecord{}, err
		}

		m := model.ServiceMetrics{
			NearestDistanceKM: idx.Nearest(*c.Location),
			HasBoundary:       c.HasBoundary(),
		}
		farAway := m.NearestDistanceKM > ac.Config.Analysis.DistanceThresholdKM
		if m.HasBoundary {
			m.FacilityCount = ac.countInside(class, c)
			if c.AreaKM2 > 0 {
				m.DensityPerKM2 = float64(m.FacilityCount) / c.AreaKM2
			}
			m.Need = m.DensityPerKM2 < ac.densityThreshold(class) && farAway
		} else {
			m.Need = farAway
		}

		rec.Metrics[class] = m
		rec.Underserved = rec.Underserved || m.Need
	}
	return rec, nil
}

// countInside counts the facilities of a class inside the community boundary.
func (ac *AnalysisContext) countInside(class model.FacilityClass, c *model.Community) int {
	box, ok := ac.Boxes[class]
	if !ok {
		return 0
	}

	facilities := ac.Snapshot.Facilities[class]
	var count int
	for _, id := range box.InBox(c.Bound.Min.X(), c.Bound.Min.Y(), c.Bound.Max.X(), c.Bound.Max.Y()) {
		if geo.Contains(c.Boundary, c.Bound, facilities[id].Location) {
			count++
		}
	}
	return count
}
