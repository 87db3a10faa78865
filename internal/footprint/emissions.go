package footprint

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"
)

// EmissionsData is the final measurement of a run. Energies are in kWh,
// powers in W, emissions in kg CO2eq and durations in seconds.
type EmissionsData struct {
	Timestamp      time.Time
	ProjectName    string
	RunID          string
	Duration       float64
	Emissions      float64
	EmissionsRate  float64
	CPUPower       float64
	RAMPower       float64
	CPUEnergy      float64
	RAMEnergy      float64
	EnergyConsumed float64
	CountryISOCode string
	OS             string
	GoVersion      string
	CPUCount       int
	RAMTotalSize   float64
	EnergySource   string
	PUE            float64
}

// Impact is the subset of EmissionsData reported for a run.
type Impact struct {
	EmissionsKg           float64 `json:"emissions_kg"`
	EnergyConsumedKWh     float64 `json:"energy_consumed_kWh"`
	DurationS             float64 `json:"duration_s"`
	EmissionsRateKgPerSec float64 `json:"emissions_rate_kg_per_sec"`
}

// Impact projects d onto the reported fields.
func (d *EmissionsData) Impact() Impact {
	return Impact{
		EmissionsKg:           d.Emissions,
		EnergyConsumedKWh:     d.EnergyConsumed,
		DurationS:             d.Duration,
		EmissionsRateKgPerSec: d.EmissionsRate,
	}
}

var csvHeader = []string{
	"timestamp", "project_name", "run_id", "duration", "emissions", "emissions_rate",
	"cpu_power", "ram_power", "cpu_energy", "ram_energy", "energy_consumed",
	"country_iso_code", "os", "go_version", "cpu_count", "ram_total_size",
	"energy_source", "pue",
}

func (d *EmissionsData) record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		d.Timestamp.UTC().Format(time.RFC3339),
		d.ProjectName,
		d.RunID,
		f(d.Duration),
		f(d.Emissions),
		f(d.EmissionsRate),
		f(d.CPUPower),
		f(d.RAMPower),
		f(d.CPUEnergy),
		f(d.RAMEnergy),
		f(d.EnergyConsumed),
		d.CountryISOCode,
		d.OS,
		d.GoVersion,
		strconv.Itoa(d.CPUCount),
		f(d.RAMTotalSize),
		d.EnergySource,
		f(d.PUE),
	}
}

// appendCSV appends d to path, writing the header first if the file is new.
func appendCSV(path string, d *EmissionsData) error {
	_, err := os.Stat(path)
	isNew := errors.Is(err, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Write(d.record()); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
