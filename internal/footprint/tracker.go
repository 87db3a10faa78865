// Package footprint estimates the energy use and carbon emissions of a run
// and appends them to a codecarbon-compatible CSV file.
package footprint

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

var (
	// ErrAlreadyStarted is returned by Start on a tracker that was started.
	ErrAlreadyStarted = errors.New("tracker already started")
	// ErrNotStarted is returned by Stop before Start.
	ErrNotStarted = errors.New("tracker not started")
	// ErrAlreadyStopped is returned by a second Stop.
	ErrAlreadyStopped = errors.New("tracker already stopped")
	// ErrNotStopped is returned by FinalEmissionsData before Stop.
	ErrNotStopped = errors.New("tracker not stopped")
)

const (
	// Share of the TDP assumed when no energy counters are readable.
	constantLoad = 0.5
	// RAM draws about 3 W per 8 GB.
	ramWattsPerGB = 3.0 / 8
	defaultRAMGB  = 8
	joulesPerKWh  = 3.6e6
)

// Tracker measures a single run. It must be started and stopped exactly
// once, in that order.
type Tracker struct {
	logger   *slog.Logger
	cfg      Config
	meter    energyMeter
	now      func() time.Time
	procRoot string
	runID    uuid.UUID

	start   time.Time
	metered bool
	final   *EmissionsData
}

// NewTracker creates a tracker writing to cfg.OutputDir/cfg.OutputFile.
func NewTracker(logger *slog.Logger, cfg Config) *Tracker {
	return &Tracker{
		logger:   logger,
		cfg:      cfg,
		meter:    newRAPLMeter(sysfs.DefaultMountPoint),
		now:      time.Now,
		procRoot: procfs.DefaultMountPoint,
		runID:    uuid.New(),
	}
}

// Start begins measuring.
func (t *Tracker) Start() error {
	if !t.start.IsZero() {
		return ErrAlreadyStarted
	}
	t.start = t.now()
	t.metered = t.meter.begin()
	t.logger.Info("Footprint tracking started", "run_id", t.runID, "mode", t.mode())
	return nil
}

func (t *Tracker) mode() string {
	if t.metered {
		return "rapl"
	}
	return "constant"
}

// Stop ends measuring, computes the final emissions data and appends it to
// the CSV file.
func (t *Tracker) Stop() error {
	switch {
	case t.start.IsZero():
		return ErrNotStarted
	case t.final != nil:
		return ErrAlreadyStopped
	}
	end := t.now()
	secs := end.Sub(t.start).Seconds()

	d := &EmissionsData{
		Timestamp:      end,
		ProjectName:    t.cfg.ProjectName,
		RunID:          t.runID.String(),
		Duration:       secs,
		CountryISOCode: t.cfg.CountryISOCode,
		OS:             runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion:      runtime.Version(),
		CPUCount:       runtime.NumCPU(),
		EnergySource:   t.mode(),
		PUE:            t.cfg.PUE,
	}

	cpuJoules := t.cfg.CPUTDP * constantLoad * secs
	if t.metered {
		j, err := t.meter.joules()
		if err != nil {
			t.logger.Warn("Could not read energy counters, falling back to constant mode", "err", err)
			d.EnergySource = "constant"
		} else {
			cpuJoules = j
		}
	}
	if secs > 0 {
		d.CPUPower = cpuJoules / secs
	}
	d.CPUEnergy = cpuJoules / joulesPerKWh

	ramGB, err := memTotalGB(t.procRoot)
	if err != nil {
		ramGB = defaultRAMGB
	}
	d.RAMTotalSize = ramGB
	d.RAMPower = ramGB * ramWattsPerGB
	d.RAMEnergy = d.RAMPower * secs / joulesPerKWh

	d.EnergyConsumed = (d.CPUEnergy + d.RAMEnergy) * t.cfg.PUE
	d.Emissions = d.EnergyConsumed * t.cfg.CarbonIntensity
	if secs > 0 {
		d.EmissionsRate = d.Emissions / secs
	}
	t.final = d

	path := filepath.Join(t.cfg.OutputDir, t.cfg.OutputFile)
	if err := appendCSV(path, d); err != nil {
		return fmt.Errorf("could not write emissions to %s: %w", path, err)
	}
	t.logger.Info("Footprint tracking stopped", "duration", time.Duration(secs*float64(time.Second)).Round(time.Millisecond), "csv", path)
	return nil
}

// FinalEmissionsData returns the result of the stopped run.
func (t *Tracker) FinalEmissionsData() (*EmissionsData, error) {
	if t.final == nil {
		return nil, ErrNotStopped
	}
	return t.final, nil
}
