package footprint

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultOutputFile is the name of the emissions CSV inside the output
// directory.
const DefaultOutputFile = "emissions_codecarbon.csv"

// Config holds the tracker settings.
type Config struct {
	OutputDir   string
	OutputFile  string
	ProjectName string

	// CountryISOCode is only reported, it does not select an intensity.
	CountryISOCode string

	// CarbonIntensity is in kg CO2eq per kWh.
	CarbonIntensity float64

	// CPUTDP is the CPU thermal design power in watts, used when no energy
	// counters are readable.
	CPUTDP float64

	// PUE is the power usage effectiveness applied to measured energy.
	PUE float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig(outputDir string) Config {
	return Config{
		OutputDir:       outputDir,
		OutputFile:      DefaultOutputFile,
		ProjectName:     "sstmap",
		CountryISOCode:  "",
		CarbonIntensity: 0.475, // world average
		CPUTDP:          85,
		PUE:             1,
	}
}

// LoadConfig reads tracker settings from the environment with defaults. A
// .env file in the working directory is loaded first when present.
func LoadConfig(logger *slog.Logger, outputDir string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("could not load .env: %w", err)
		}
		logger.Debug("No .env file found")
	}
	cfg := DefaultConfig(outputDir)
	cfg.ProjectName = getenvDefault("SSTMAP_PROJECT_NAME", cfg.ProjectName)
	cfg.CountryISOCode = getenvDefault("SSTMAP_COUNTRY_ISO_CODE", cfg.CountryISOCode)

	var err error
	if cfg.CarbonIntensity, err = getenvFloat("SSTMAP_CARBON_INTENSITY", cfg.CarbonIntensity); err != nil {
		return Config{}, err
	}
	if cfg.CPUTDP, err = getenvFloat("SSTMAP_CPU_TDP_W", cfg.CPUTDP); err != nil {
		return Config{}, err
	}
	if cfg.PUE, err = getenvFloat("SSTMAP_PUE", cfg.PUE); err != nil {
		return Config{}, err
	}
	if cfg.PUE < 1 {
		return Config{}, fmt.Errorf("invalid SSTMAP_PUE %v: must be at least 1", cfg.PUE)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid %s %v: must not be negative", key, f)
	}
	return f, nil
}
