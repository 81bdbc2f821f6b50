package main

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/report"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run the analysis and export the results",
	Long: `Writes every community verdict and every recommended site.

File formats (json, yaml, csv, xlsx) go to --out or stdout. The postgis format
upserts community verdicts into export.underserved_table and appends sites to
export.recommendations_table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		toDB := exportFormat == report.FormatPostGIS
		if !toDB && !slices.Contains(report.FileFormats, exportFormat) {
			return eris.Errorf("export: unsupported format %q", exportFormat)
		}
		if toDB && cfg.Database.URL == "" {
			return eris.New("export: database.url is required for the postgis format")
		}

		ctx := cmd.Context()
		env, err := initAnalysis(ctx, "export", toDB)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Holder.Current().Result(ctx)
		if err != nil {
			return eris.Wrap(err, "export: analyze")
		}

		if !toDB {
			return report.WriteFile(exportOut, exportFormat, report.NewDocument(res))
		}

		if err := report.EnsureTables(ctx, env.Pool, cfg.Export); err != nil {
			return err
		}
		counts, err := report.ExportPostGIS(ctx, env.Pool, cfg.Export, res)
		if err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("run_id", res.RunID),
			zap.Int64("communities", counts.Communities),
			zap.Int64("recommendations", counts.Recommendations),
		)
		return nil
	},
}

func init() {
	formats := append(slices.Clone(report.FileFormats), report.FormatPostGIS)
	exportCmd.Flags().StringVar(&exportFormat, "format", report.FormatJSON, "export format: "+strings.Join(formats, ", "))
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file for file formats (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
