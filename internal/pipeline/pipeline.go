// Package pipeline runs the SST analysis end to end: load, reduce, render
// and report, inside a footprint tracker.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rtm0/sstmap/internal/footprint"
	"github.com/rtm0/sstmap/internal/leafmap"
	"github.com/rtm0/sstmap/internal/sst"
	"github.com/rtm0/sstmap/internal/vm"
)

// Output file names inside the output directory.
const (
	DefaultInputFile = "20250709000000-GOS-L4_GHRSST-SSTfnd-OISST_HR_REP-MED-v02.0-fv03.0.nc"
	SummaryFile      = "summary.json"
	MapFile          = "SST_Mediterranee_map.html"
	ImpactFile       = "impact_estimate.json"
)

// Config holds the paths and settings of a run.
type Config struct {
	OutputDir string
	InputFile string
	Map       leafmap.Options
	Footprint footprint.Config

	// VMInsertURL enables pushing the results to Victoria Metrics when set.
	VMInsertURL  string
	MetricPrefix string
}

// DefaultConfig returns the configuration of a run writing to outputDir and
// reading the Mediterranean OISST file from it.
func DefaultConfig(outputDir string) Config {
	return Config{
		OutputDir:    outputDir,
		InputFile:    filepath.Join(outputDir, DefaultInputFile),
		Map:          leafmap.DefaultOptions(),
		Footprint:    footprint.DefaultConfig(outputDir),
		MetricPrefix: "sstmap",
	}
}

// Run executes the analysis. An error before the tracker is stopped leaves
// it running: nothing is written for a failed run beyond what already was.
func Run(logger *slog.Logger, cfg Config) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}
	summaryPath := filepath.Join(cfg.OutputDir, SummaryFile)
	mapPath := filepath.Join(cfg.OutputDir, MapFile)
	impactPath := filepath.Join(cfg.OutputDir, ImpactFile)

	tracker := footprint.NewTracker(logger, cfg.Footprint)
	if err := tracker.Start(); err != nil {
		return err
	}

	ds, err := sst.Open(cfg.InputFile)
	if err != nil {
		return err
	}
	defer ds.Close()
	logger.Info("SST dataset", ds.Summary()...)

	grid, stats, err := sst.Reduce(ds.Field)
	if err != nil {
		return err
	}
	if stats.Empty() {
		logger.Warn("SST slice holds no valid data", "variable", ds.Field.Name)
	} else {
		logger.Info("SST statistics", stats.LogAttrs()...)
	}

	if err := writeJSON(summaryPath, stats); err != nil {
		return err
	}

	lat, err := ds.Axis(ds.LatName)
	if err != nil {
		return err
	}
	lon, err := ds.Axis(ds.LonName)
	if err != nil {
		return err
	}
	out, err := leafmap.Render(grid, stats, lat, lon, mapPath, cfg.Map)
	if err != nil {
		return err
	}
	logger.Info("Map saved", "path", out)

	if err := tracker.Stop(); err != nil {
		return err
	}
	data, err := tracker.FinalEmissionsData()
	if err != nil {
		return err
	}
	impact := data.Impact()
	if err := writeJSON(impactPath, impact); err != nil {
		return err
	}
	logger.Info("CO2 impact saved", "path", impactPath)
	logger.Info(fmt.Sprintf("CO2 emitted (kg): %.6f, energy (kWh): %.6f", impact.EmissionsKg, impact.EnergyConsumedKWh))

	if cfg.VMInsertURL != "" {
		if err := push(logger, cfg, ds, stats, data); err != nil {
			logger.Error("Could not push metrics", "err", err)
		}
	}
	return nil
}

func push(logger *slog.Logger, cfg Config, ds *sst.Dataset, stats sst.Stats, data *footprint.EmissionsData) error {
	cli, err := vm.NewClient(logger, cfg.VMInsertURL, cfg.MetricPrefix)
	if err != nil {
		return err
	}
	imp := data.Impact()
	return cli.Insert([]vm.Record{{
		Time:                  data.Timestamp,
		File:                  filepath.Base(ds.Path),
		Variable:              ds.Field.Name,
		RunID:                 data.RunID,
		Mean:                  stats.Mean,
		Min:                   stats.Min,
		Max:                   stats.Max,
		Median:                stats.Median,
		EmissionsKg:           imp.EmissionsKg,
		EnergyConsumedKWh:     imp.EnergyConsumedKWh,
		DurationS:             imp.DurationS,
		EmissionsRateKgPerSec: imp.EmissionsRateKgPerSec,
	}})
}

// writeJSON writes v to path with 4-space indentation.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}
