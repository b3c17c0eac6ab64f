package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evopt/app"
	"github.com/kilianp07/evopt/config"
	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/infra/logger"
	"github.com/kilianp07/evopt/pkg/export"
)

var (
	planInputPath string
	planDryRun    bool
	planFormat    string
	planOutPath   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one optimization and print the plan",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planInputPath, "input", "i", "", "forecast input file (json)")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "do not advance vehicle state")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "json", "output format (json or csv)")
	planCmd.Flags().StringVarP(&planOutPath, "out", "o", "", "write the plan to a file instead of stdout")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if planDryRun {
		cfg.Planner.DryRun = true
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("plan-command").Errorf("service close: %v", err)
		}
	}()

	var in forecast.Input
	if planInputPath != "" {
		data, err := os.ReadFile(planInputPath)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("parse input: %w", err)
		}
	}

	p, err := svc.Manager.Plan(ctx, in, "cli")
	if err != nil {
		return err
	}
	if planOutPath != "" {
		f, err := os.Create(planOutPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := renderPlan(f, p); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return renderPlan(cmd.OutOrStdout(), p)
}

func renderPlan(w io.Writer, p model.DispatchPlan) error {
	switch planFormat {
	case "json":
		return export.WriteJSON(w, p)
	case "csv":
		return export.WriteCSV(w, p)
	default:
		return fmt.Errorf("unknown format %q", planFormat)
	}
}
