package pipeline

import (
	"fmt"
	"strings"

	"github.com/vivaro/vivaro/internal/model"
)

// justification explains the recommended sites. Classes that fail both the
// density and distance rules get cause-based text; the rest get
// growth-oriented text. Without a boundary the density is unmeasured, so
// only the distance is cited.
func justification(rec model.UnderservedRecord, classes []model.FacilityClass, sites map[model.FacilityClass]model.GeoPoint) string {
	parts := make([]string, 0, len(classes))
	for _, class := range classes {
		m := rec.Metrics[class]
		site := sites[class]
		parts = append(parts, sentence(class, m, site))
	}
	return strings.Join(parts, " ")
}

func sentence(class model.FacilityClass, m model.ServiceMetrics, site model.GeoPoint) string {
	switch class {
	case model.ClassSchool:
		if m.Need && !m.HasBoundary {
			return fmt.Sprintf("With the nearest school %.1f km away, placing a new school at %s will markedly improve access.",
				m.NearestDistanceKM, site)
		}
		if m.Need {
			return fmt.Sprintf("Due to a very low school density (%.3f per km²) and a school distance of %.1f km, placing a new school at %s will markedly improve access.",
				m.DensityPerKM2, m.NearestDistanceKM, site)
		}
		return fmt.Sprintf("While current school metrics are moderate, installing a school at %s will help prepare for future growth.", site)
	case model.ClassHealthcare:
		if m.Need && !m.HasBoundary {
			return fmt.Sprintf("A distance of %.1f km to the nearest healthcare facility justifies a new clinic at %s.",
				m.NearestDistanceKM, site)
		}
		if m.Need {
			return fmt.Sprintf("The low healthcare density (%.3f per km²) and a distance of %.1f km justify a new clinic at %s.",
				m.DensityPerKM2, m.NearestDistanceKM, site)
		}
		return fmt.Sprintf("Although current facilities are borderline sufficient, deploying a clinic at %s can strengthen local healthcare capacity.", site)
	default:
		return ""
	}
}
