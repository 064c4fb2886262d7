package cmd

import (
	"fmt"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	"github.com/BioHazard786/Warpchat/cli/internal/ui"
	"github.com/spf13/cobra"
)

const statusTimeout = 10 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many people are online and waiting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		stop := ui.RunSpinner("Fetching server stats...")
		stats, err := signaling.FetchStats(cmd.Context(), signaling.NewHTTPClient(statusTimeout), cfg.StatsURL())
		stop()
		if err != nil {
			return err
		}

		fmt.Println(ui.StatsView(cfg.ServerURL, stats))
		return nil
	},
}
