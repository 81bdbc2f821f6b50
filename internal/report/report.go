// Package report writes analysis results to files and PostGIS tables.
package report

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/vivaro/vivaro/internal/model"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatPostGIS = "postgis"
)

// FileFormats lists the formats Write accepts.
var FileFormats = []string{FormatJSON, FormatYAML, FormatCSV, FormatXLSX}

// Document is the exported form of one analysis run.
type Document struct {
	RunID           string                     `json:"run_id" yaml:"run_id"`
	GeneratedAt     time.Time                  `json:"generated_at" yaml:"generated_at"`
	TotalCities     int                        `json:"total_cities" yaml:"total_cities"`
	Clusters        int                        `json:"clusters" yaml:"clusters"`
	Communities     []model.UnderservedView    `json:"communities" yaml:"communities"`
	Recommendations []model.RecommendationView `json:"recommendations" yaml:"recommendations"`
}

// NewDocument builds the exported form of res. Every community is listed,
// not only the underserved ones.
func NewDocument(res *model.Result) Document {
	return Document{
		RunID:           res.RunID,
		GeneratedAt:     res.StartedAt,
		TotalCities:     len(res.Records),
		Clusters:        res.Clustering.Len(),
		Communities:     model.UnderservedViews(res.Records),
		Recommendations: model.RecommendationViews(res.Recommendations),
	}
}

// Write encodes doc to w in the given file format.
func Write(w io.Writer, format string, doc Document) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(doc), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	case FormatCSV:
		return writeCSV(w, doc)
	case FormatXLSX:
		return writeXLSX(w, doc)
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

// WriteFile writes doc to path, or to stdout when path is empty or "-".
func WriteFile(path, format string, doc Document) error {
	if path == "" || path == "-" {
		return Write(os.Stdout, format, doc)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create output file %s", path)
	}
	if err := Write(f, format, doc); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}
