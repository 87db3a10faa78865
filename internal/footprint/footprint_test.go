package footprint

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeter struct {
	ok  bool
	j   float64
	err error
}

func (m *fakeMeter) begin() bool              { return m.ok }
func (m *fakeMeter) joules() (float64, error) { return m.j, m.err }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestTracker(t *testing.T, meter energyMeter) (*Tracker, *fakeClock) {
	t.Helper()
	dir := t.TempDir()
	procRoot := filepath.Join(dir, "proc")
	writeFile(t, filepath.Join(procRoot, "meminfo"), "MemTotal:       16777216 kB\nMemFree:  1 kB\n")

	cfg := DefaultConfig(dir)
	cfg.CarbonIntensity = 0.5
	cfg.CPUTDP = 100
	clock := &fakeClock{t: time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	tr.meter = meter
	tr.now = clock.now
	tr.procRoot = procRoot
	return tr, clock
}

func TestTrackerLifecycle(t *testing.T) {
	tr, clock := newTestTracker(t, &fakeMeter{})

	_, err := tr.FinalEmissionsData()
	assert.ErrorIs(t, err, ErrNotStopped)
	assert.ErrorIs(t, tr.Stop(), ErrNotStarted)

	require.NoError(t, tr.Start())
	assert.ErrorIs(t, tr.Start(), ErrAlreadyStarted)
	_, err = tr.FinalEmissionsData()
	assert.ErrorIs(t, err, ErrNotStopped)

	clock.t = clock.t.Add(36 * time.Second)
	require.NoError(t, tr.Stop())
	assert.ErrorIs(t, tr.Stop(), ErrAlreadyStopped)

	d, err := tr.FinalEmissionsData()
	require.NoError(t, err)
	assert.Equal(t, 36.0, d.Duration)
	assert.Equal(t, "constant", d.EnergySource)
	// 50 W for 36 s.
	assert.InDelta(t, 0.0005, d.CPUEnergy, 1e-12)
	assert.InDelta(t, 50.0, d.CPUPower, 1e-9)
	// 16 GB -> 6 W for 36 s.
	assert.InDelta(t, 16.0, d.RAMTotalSize, 1e-9)
	assert.InDelta(t, 6.0, d.RAMPower, 1e-9)
	assert.InDelta(t, 0.00006, d.RAMEnergy, 1e-12)
	assert.InDelta(t, 0.00056, d.EnergyConsumed, 1e-12)
	assert.InDelta(t, 0.00028, d.Emissions, 1e-12)
	assert.InDelta(t, 0.00028/36, d.EmissionsRate, 1e-15)

	imp := d.Impact()
	assert.Equal(t, Impact{
		EmissionsKg:           d.Emissions,
		EnergyConsumedKWh:     d.EnergyConsumed,
		DurationS:             36,
		EmissionsRateKgPerSec: d.EmissionsRate,
	}, imp)
}

func TestTrackerMetered(t *testing.T) {
	tr, clock := newTestTracker(t, &fakeMeter{ok: true, j: 7200})
	tr.cfg.PUE = 1.5

	require.NoError(t, tr.Start())
	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, tr.Stop())

	d, err := tr.FinalEmissionsData()
	require.NoError(t, err)
	assert.Equal(t, "rapl", d.EnergySource)
	assert.InDelta(t, 120.0, d.CPUPower, 1e-9)
	assert.InDelta(t, 0.002, d.CPUEnergy, 1e-12)
	assert.InDelta(t, (0.002+0.0001)*1.5, d.EnergyConsumed, 1e-12)
}

func TestTrackerMeterFailure(t *testing.T) {
	tr, clock := newTestTracker(t, &fakeMeter{ok: true, err: errors.New("permission denied")})

	require.NoError(t, tr.Start())
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, tr.Stop())

	d, err := tr.FinalEmissionsData()
	require.NoError(t, err)
	assert.Equal(t, "constant", d.EnergySource)
	assert.InDelta(t, 50.0, d.CPUPower, 1e-9)
}

func TestTrackerCSV(t *testing.T) {
	tr, clock := newTestTracker(t, &fakeMeter{})
	require.NoError(t, tr.Start())
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, tr.Stop())

	tr2, _ := newTestTracker(t, &fakeMeter{})
	tr2.cfg.OutputDir = tr.cfg.OutputDir
	require.NoError(t, tr2.Start())
	require.NoError(t, tr2.Stop())

	f, err := os.Open(filepath.Join(tr.cfg.OutputDir, DefaultOutputFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "sstmap", rows[1][1])
	assert.Equal(t, tr.runID.String(), rows[1][2])
	assert.Equal(t, "1", rows[1][3])
	assert.NotEqual(t, rows[1][2], rows[2][2])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZone(t *testing.T, root, dir, name, energy, maxRange string) {
	t.Helper()
	zone := filepath.Join(root, "class", "powercap", dir)
	writeFile(t, filepath.Join(zone, "name"), name+"\n")
	writeFile(t, filepath.Join(zone, "energy_uj"), energy+"\n")
	writeFile(t, filepath.Join(zone, "max_energy_range_uj"), maxRange+"\n")
}

func TestRAPLMeter(t *testing.T) {
	root := t.TempDir()
	writeZone(t, root, "intel-rapl:0", "package-0", "1000000", "262143328850")
	writeZone(t, root, "intel-rapl:1", "package-1", "262143000000", "262143328850")

	m := newRAPLMeter(root)
	require.True(t, m.begin())
	require.Len(t, m.domains, 2)

	powercap := filepath.Join(root, "class", "powercap")
	writeFile(t, filepath.Join(powercap, "intel-rapl:0", "energy_uj"), "3000000\n")
	// Counter 1 wrapped around.
	writeFile(t, filepath.Join(powercap, "intel-rapl:1", "energy_uj"), "671150\n")

	j, err := m.joules()
	require.NoError(t, err)
	assert.InDelta(t, 2.0+1.0, j, 1e-9)

	// Repeated begin resets the baseline.
	require.True(t, m.begin())
	j, err = m.joules()
	require.NoError(t, err)
	assert.Zero(t, j)
}

func TestRAPLMeterUnavailable(t *testing.T) {
	assert.False(t, newRAPLMeter(t.TempDir()).begin())
	assert.False(t, newRAPLMeter(filepath.Join(t.TempDir(), "missing")).begin())

	root := t.TempDir()
	zone := filepath.Join(root, "class", "powercap", "intel-rapl:0")
	writeFile(t, filepath.Join(zone, "name"), "package-0\n")
	writeFile(t, filepath.Join(zone, "max_energy_range_uj"), "10\n")
	assert.False(t, newRAPLMeter(root).begin())
}

func TestMemTotalGB(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "meminfo")
	writeFile(t, path, "MemFree: 10 kB\nMemTotal:        8388608 kB\n")
	gb, err := memTotalGB(root)
	require.NoError(t, err)
	assert.Equal(t, 8.0, gb)

	writeFile(t, path, "MemFree: 10 kB\n")
	_, err = memTotalGB(root)
	assert.Error(t, err)

	_, err = memTotalGB(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadConfig(t *testing.T) {
	chdir(t, t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := LoadConfig(logger, "out")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig("out"), cfg)

	t.Setenv("SSTMAP_CARBON_INTENSITY", "0.056")
	t.Setenv("SSTMAP_COUNTRY_ISO_CODE", "FRA")
	t.Setenv("SSTMAP_PUE", "1.2")
	cfg, err = LoadConfig(logger, "out")
	require.NoError(t, err)
	assert.Equal(t, 0.056, cfg.CarbonIntensity)
	assert.Equal(t, "FRA", cfg.CountryISOCode)
	assert.Equal(t, 1.2, cfg.PUE)

	t.Setenv("SSTMAP_CPU_TDP_W", "lots")
	_, err = LoadConfig(logger, "out")
	assert.Error(t, err)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, filepath.Join(dir, ".env"), "SSTMAP_PROJECT_NAME=mediterranean\n")
	// Restored on cleanup; godotenv only fills unset variables.
	t.Setenv("SSTMAP_PROJECT_NAME", "")
	require.NoError(t, os.Unsetenv("SSTMAP_PROJECT_NAME"))

	cfg, err := LoadConfig(slog.New(slog.NewTextHandler(io.Discard, nil)), "out")
	require.NoError(t, err)
	assert.Equal(t, "mediterranean", cfg.ProjectName)
}
