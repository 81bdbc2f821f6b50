package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/report"
)

var (
	analyzeOut    string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify communities and print the underserved summary",
	Long: `Runs the full analysis once: classification, clustering of the underserved
communities and facility site recommendations.

Examples:
  # Summary table on stdout
  vivaro analyze

  # Full result as YAML
  vivaro analyze --out result.yaml --format yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initAnalysis(cmd.Context(), "analyze", false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Holder.Current().Result(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if err := writeSummary(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if analyzeOut != "" {
			return report.WriteFile(analyzeOut, analyzeFormat, report.NewDocument(res))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "also write the full result to this file")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", report.FormatJSON, "output file format: "+strings.Join(report.FileFormats, ", "))
	rootCmd.AddCommand(analyzeCmd)
}

// writeSummary prints the underserved communities and their recommended
// sites as a fixed-width table.
func writeSummary(w io.Writer, res *model.Result) error {
	underserved := res.Underserved()

	lines := []string{
		fmt.Sprintf("Run:             %s", res.RunID),
		fmt.Sprintf("Communities:     %d", len(res.Records)),
		fmt.Sprintf("Underserved:     %d", len(underserved)),
		fmt.Sprintf("Clusters:        %d", res.Clustering.Len()),
		fmt.Sprintf("Recommendations: %d", len(res.Recommendations)),
		"",
		fmt.Sprintf("%-32s %10s %10s %10s %10s", "Community", "School km", "Clinic km", "School/km²", "Clinic/km²"),
		strings.Repeat("-", 76),
	}
	for _, rec := range underserved {
		v := rec.View()
		name := truncate(v.Name, 32)
		lines = append(lines, fmt.Sprintf("%-32s %10.2f %10.2f %10.3f %10.3f",
			name, v.SchoolDist, v.HealthcareDist, v.SchoolDensity, v.HealthcareDensity))
	}

	if len(res.Recommendations) > 0 {
		lines = append(lines, "", "Recommended sites:")
		for _, r := range res.Recommendations {
			var sites []string
			for _, class := range model.FacilityClasses {
				if site, ok := r.Sites[class]; ok {
					sites = append(sites, class.MarkerKey()+" "+site.String())
				}
			}
			lines = append(lines, fmt.Sprintf("  %s (cluster %d): %s", r.Community.Name, r.ClusterID, strings.Join(sites, ", ")))
		}
	}

	if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
		return eris.Wrap(err, "analyze: write summary")
	}
	return nil
}

// printJSON writes v as indented JSON.
// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
