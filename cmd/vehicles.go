package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evopt/config"
)

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "Fleet related commands",
}

var vehiclesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List configured vehicles",
	RunE:  runVehiclesLs,
}

func init() {
	vehiclesCmd.AddCommand(vehiclesLsCmd)
	rootCmd.AddCommand(vehiclesCmd)
}

func runVehiclesLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for i, vc := range cfg.Vehicles {
		fmt.Fprintf(cmd.OutOrStdout(), "%d: %.1f kWh, %.2f kW charger, soc %.0f%%\n",
			i, vc.BatteryCapacityWh/1000, vc.NominalPowerW/1000, vc.InitialSoCPercent)
	}
	return nil
}
