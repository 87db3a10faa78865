package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rtm0/sstmap/internal/footprint"
	"github.com/rtm0/sstmap/internal/pipeline"
)

var (
	outDir       = flag.String("outdir", "./outputs", "directory receiving the stats, map, impact and emissions files; created if absent")
	file         = flag.String("file", "", "path to an SST file in NetCDF format. Default: <outdir>/"+pipeline.DefaultInputFile)
	vmInsertURL  = flag.String("vmInsertUrl", "", "optional Victoria Metrics insert API URL, e.g. http://localhost:8428/write or http://localhost:8428/api/v1/import/csv")
	metricPrefix = flag.String("metricPrefix", "sstmap", "prefix of the metric names pushed to Victoria Metrics")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	fpCfg, err := footprint.LoadConfig(logger, *outDir)
	if err != nil {
		logger.Error("Could not load footprint configuration", "err", err)
		os.Exit(1)
	}

	cfg := pipeline.DefaultConfig(*outDir)
	if *file != "" {
		cfg.InputFile = filepath.Clean(*file)
	}
	cfg.Footprint = fpCfg
	cfg.VMInsertURL = *vmInsertURL
	cfg.MetricPrefix = *metricPrefix

	if err := pipeline.Run(logger, cfg); err != nil {
		logger.Error("SST analysis failed", "err", err)
		os.Exit(1)
	}
}
