package leafmap

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rtm0/sstmap/internal/sst"
)

const missing = "N/A"

// Popup returns the HTML shown in the marker popup.
func Popup(s sst.Stats) string {
	return fmt.Sprintf("<b>SST Stats</b><br>Mean: %s °C<br>Min: %s °C<br>Max: %s °C",
		formatTemp(s.Mean), formatTemp(s.Min), formatTemp(s.Max))
}

// formatTemp rounds half away from zero to two decimals.
func formatTemp(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missing
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}
