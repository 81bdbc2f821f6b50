package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vivaro",
	Short: "Underserved community analysis and facility siting",
	Long: "Loads communities, schools and healthcare facilities, flags underserved communities, " +
		"clusters them and recommends new facility sites. Results are printed, exported or served over HTTP.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
