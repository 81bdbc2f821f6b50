package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/vivaro/vivaro/internal/model"
)

var communityHeader = []string{
	"name", "lat", "lon", "school_dist_km", "healthcare_dist_km",
	"school_density", "healthcare_density", "area_km2", "underserved",
}

var recommendationHeader = []string{"name", "facility", "lat", "lon", "justification"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func communityRow(v model.UnderservedView) []string {
	return []string{
		v.Name,
		formatFloat(v.Coords[0]),
		formatFloat(v.Coords[1]),
		formatFloat(v.SchoolDist),
		formatFloat(v.HealthcareDist),
		formatFloat(v.SchoolDensity),
		formatFloat(v.HealthcareDensity),
		formatFloat(v.AreaKM2),
		strconv.FormatBool(v.Underserved),
	}
}

// recommendationRows flattens a recommendation into one row per site in
// school, clinic order.
func recommendationRows(v model.RecommendationView) [][]string {
	var rows [][]string
	for _, class := range model.FacilityClasses {
		site, ok := v.RecommendedFacility[class.MarkerKey()]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			v.Name,
			class.MarkerKey(),
			formatFloat(site[0]),
			formatFloat(site[1]),
			v.Justification,
		})
	}
	return rows
}

// writeCSV writes the community table. Recommendations follow after a blank
// line with their own header.
func writeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(communityHeader); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, c := range doc.Communities {
		if err := cw.Write(communityRow(c)); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}

	if len(doc.Recommendations) > 0 {
		if err := cw.Write(nil); err != nil {
			return eris.Wrap(err, "report: write CSV separator")
		}
		if err := cw.Write(recommendationHeader); err != nil {
			return eris.Wrap(err, "report: write CSV header")
		}
		for _, r := range doc.Recommendations {
			for _, row := range recommendationRows(r) {
				if err := cw.Write(row); err != nil {
					return eris.Wrap(err, "report: write CSV row")
				}
			}
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}
