package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/spatial"
)

// Gating modes decide which facility classes a recommendation carries.
const (
	// GatingNeed emits only the classes that fail both rules.
	GatingNeed = "need"
	// GatingUnderserved emits every class for an underserved community.
	GatingUnderserved = "underserved"
)

// Synthesize turns underserved records into site recommendations placed at
// their cluster centroid. With the reachability filter on, recommendations
// whose centroid lies farther than BufferKM from every urban center are
// dropped. Output follows record order.
func Synthesize(records []model.UnderservedRecord, clustering *model.Clustering, cfg config.RecommendConfig, urban *spatial.Index) ([]model.Recommendation, error) {
	if cfg.ReachabilityFilter && urban == nil {
		return nil, eris.New("pipeline: reachability filter needs urban centers")
	}
	log := zap.L().With(zap.String("component", "pipeline.recommend"))

	var out []model.Recommendation
	var suppressed int
	for _, rec := range records {
		if !rec.Underserved || rec.Community == nil {
			continue
		}

		cl, ok := clustering.For(rec.Community.Name)
		if !ok {
			return nil, eris.Errorf("pipeline: community %q has no cluster", rec.Community.Name)
		}

		if cfg.ReachabilityFilter {
			if d := urban.Nearest(cl.Centroid); d > cfg.BufferKM {
				suppressed++
				log.Debug("recommendation outside reachability buffer",
					zap.String("community", rec.Community.Name),
					zap.Float64("urban_distance_km", d),
				)
				continue
			}
		}

		classes := facilityClasses(rec, cfg.Gating)
		if len(classes) == 0 {
			continue
		}

		sites := make(map[model.FacilityClass]model.GeoPoint, len(classes))
		for _, class := range classes {
			site := cl.Centroid
			if len(classes) > 1 && class == model.ClassHealthcare {
				site = site.Offset(cfg.MarkerOffsetDeg, -cfg.MarkerOffsetDeg)
			}
			sites[class] = model.Pt(model.Round(site.Lat, 6), model.Round(site.Lon, 6))
		}

		r := model.Recommendation{
			Community: rec.Community,
			Sites:     sites,
			ClusterID: cl.ID,
		}
		if cfg.Justification {
			r.Justification = justification(rec, classes, sites)
		}
		out = append(out, r)
	}

	if suppressed > 0 {
		log.Info("recommendations suppressed by reachability filter", zap.Int("count", suppressed))
	}
	return out, nil
}

// facilityClasses returns the classes to recommend for an underserved record.
func facilityClasses(rec model.UnderservedRecord, gating string) []model.FacilityClass {
	if gating == GatingUnderserved {
		return model.FacilityClasses
	}
	return rec.Needs()
}
