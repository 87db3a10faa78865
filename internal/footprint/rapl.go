package footprint

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

// energyMeter measures energy consumed since begin was called.
type energyMeter interface {
	// begin snapshots the counters and reports whether they are readable.
	begin() bool
	// joules returns the energy consumed since begin.
	joules() (float64, error)
}

type raplDomain struct {
	zone  sysfs.RaplZone
	start uint64
}

// raplMeter reads the Intel RAPL package counters exposed by the powercap
// driver under a sysfs mount point.
type raplMeter struct {
	sysRoot string
	domains []raplDomain
}

func newRAPLMeter(sysRoot string) *raplMeter {
	return &raplMeter{sysRoot: sysRoot}
}

func (m *raplMeter) begin() bool {
	fs, err := sysfs.NewFS(m.sysRoot)
	if err != nil {
		return false
	}
	zones, err := sysfs.GetRaplZones(fs)
	if err != nil {
		return false
	}
	m.domains = m.domains[:0]
	for _, z := range zones {
		// Sub-zones (intel-rapl:0:0) are already counted in their package.
		if strings.Count(filepath.Base(z.Path), ":") != 1 {
			continue
		}
		start, err := z.GetEnergyMicrojoules()
		if err != nil {
			return false
		}
		m.domains = append(m.domains, raplDomain{zone: z, start: start})
	}
	return len(m.domains) > 0
}

func (m *raplMeter) joules() (float64, error) {
	var total uint64
	for _, d := range m.domains {
		cur, err := d.zone.GetEnergyMicrojoules()
		if err != nil {
			return 0, err
		}
		if cur >= d.start {
			total += cur - d.start
		} else {
			total += d.zone.MaxMicrojoules - d.start + cur
		}
	}
	return float64(total) / 1e6, nil
}

// memTotalGB returns MemTotal from the meminfo file of a procfs mount point
// in gigabytes.
func memTotalGB(procRoot string) (float64, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return 0, err
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.MemTotal == nil {
		return 0, fmt.Errorf("no MemTotal in %s", filepath.Join(procRoot, "meminfo"))
	}
	return float64(*mi.MemTotal) / (1024 * 1024), nil
}
