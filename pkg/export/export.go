// Package export renders dispatch plans for files and pipes.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/evopt/core/model"
)

// WriteJSON writes the plan to w as indented JSON.
func WriteJSON(w io.Writer, plan model.DispatchPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WriteCSV writes the plan to w as one row per timestep. Battery, deferrable
// and vehicle columns appear only when the plan carries them. SoC columns
// hold the state after the step executes.
func WriteCSV(w io.Writer, plan model.DispatchPlan) error {
	cw := csv.NewWriter(w)

	hasBattery := len(plan.BatterySoC) > 0
	header := []string{"step", "grid_import_w", "grid_export_w"}
	if hasBattery {
		header = append(header, "battery_charge_w", "battery_discharge_w", "battery_soc")
	}
	for _, d := range plan.Deferrables {
		header = append(header, d.Name+"_w")
	}
	for _, v := range plan.Vehicles {
		prefix := fmt.Sprintf("ev%d", v.Index)
		header = append(header, prefix+"_power_w", prefix+"_soc")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for t := range plan.GridImportW {
		rec := []string{
			strconv.Itoa(t),
			formatW(plan.GridImportW[t]),
			formatW(plan.GridExportW[t]),
		}
		if hasBattery {
			rec = append(rec,
				formatW(plan.BatteryChargeW[t]),
				formatW(plan.BatteryDischargeW[t]),
				formatSoC(plan.BatterySoC[t+1]),
			)
		}
		for _, d := range plan.Deferrables {
			rec = append(rec, formatW(d.PowerW[t]))
		}
		for _, v := range plan.Vehicles {
			rec = append(rec, formatW(v.ChargePowerW[t]), formatSoC(v.SoC[t+1]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatW(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func formatSoC(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
