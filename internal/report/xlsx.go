package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names used by the xlsx export.
const (
	SheetCommunities     = "communities"
	SheetRecommendations = "recommendations"
)

func writeXLSX(w io.Writer, doc Document) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetCommunities)
	if err != nil {
		return eris.Wrap(err, "report: add communities sheet")
	}
	addStringRow(sheet, communityHeader)
	for _, c := range doc.Communities {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Name)
		row.AddCell().SetFloat(c.Coords[0])
		row.AddCell().SetFloat(c.Coords[1])
		row.AddCell().SetFloat(c.SchoolDist)
		row.AddCell().SetFloat(c.HealthcareDist)
		row.AddCell().SetFloat(c.SchoolDensity)
		row.AddCell().SetFloat(c.HealthcareDensity)
		row.AddCell().SetFloat(c.AreaKM2)
		row.AddCell().SetBool(c.Underserved)
	}

	sheet, err = f.AddSheet(SheetRecommendations)
	if err != nil {
		return eris.Wrap(err, "report: add recommendations sheet")
	}
	addStringRow(sheet, recommendationHeader)
	for _, r := range doc.Recommendations {
		for _, rec := range recommendationRows(r) {
			addStringRow(sheet, rec)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
