package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/pipeline"
)

var (
	probeLat float64
	probeLon float64
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Measure facility access around a coordinate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initAnalysis(cmd.Context(), "analyze", false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := pipeline.Probe(env.Holder.Current(), model.Pt(probeLat, probeLon))
		if err != nil {
			return eris.Wrap(err, "probe")
		}
		return printJSON(cmd.OutOrStdout(), res.View())
	},
}

func init() {
	probeCmd.Flags().Float64Var(&probeLat, "lat", 0, "latitude in degrees")
	probeCmd.Flags().Float64Var(&probeLon, "lon", 0, "longitude in degrees")
	_ = probeCmd.MarkFlagRequired("lat")
	_ = probeCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(probeCmd)
}
