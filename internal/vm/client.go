package vm

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Client is a Victoria Metrics client that pushes run records via either
// the InfluxDB line protocol or the CSV import API, depending on the insert
// URL path.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	insertURL    string
	metricPrefix string
	recToText    recToTextFunc
}

const metricPrefixRE = "^[a-zA-Z0-9]+$"

// NewClient creates a new VM client.
func NewClient(logger *slog.Logger, insertURL string, metricPrefix string) (*Client, error) {
	u, err := url.Parse(insertURL)
	if err != nil {
		return nil, err
	}

	matches, err := regexp.Match(metricPrefixRE, []byte(metricPrefix))
	if err != nil {
		return nil, err
	}
	if !matches {
		return nil, fmt.Errorf("metric prefix %q does not match %q regular expression", metricPrefix, metricPrefixRE)
	}

	apiParams := apiParamsFuncs[u.Path]
	if apiParams == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}
	q := u.Query()
	for name, value := range apiParams(metricPrefix) {
		q.Add(name, value)
	}
	u.RawQuery = q.Encode()

	recToText := recToTextFuncs[u.Path]
	if recToText == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}

	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		insertURL:    u.String(),
		metricPrefix: metricPrefix,
		recToText:    recToText,
	}, nil
}

// Record holds the results of one run. Non-finite values are not sent.
type Record struct {
	Time     time.Time
	File     string
	Variable string
	RunID    string

	Mean   float64
	Min    float64
	Max    float64
	Median float64

	EmissionsKg           float64
	EnergyConsumedKWh     float64
	DurationS             float64
	EmissionsRateKgPerSec float64
}

// Insert sends records to Victoria Metrics.
func (c *Client) Insert(recs []Record) error {
	body := recsToText(recs, c.metricPrefix, c.recToText)
	res, err := c.httpCli.Post(c.insertURL, "text/plain", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not post data: %w", err)
	}
	defer res.Body.Close()
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		c.logger.Error("Failed to drain response body", "err", err)
	}
	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d from %s", res.StatusCode, c.insertURL)
	}
	c.logger.Info("Metrics pushed", "url", c.insertURL, "records", len(recs))
	return nil
}

type metric struct {
	name  string
	value func(*Record) float64
}

type measurement struct {
	name    string
	metrics []metric
}

// measurements lists the metrics of a record. Metric names are sorted
// within a measurement.
var measurements = []measurement{
	{"sst", []metric{
		{"max", func(r *Record) float64 { return r.Max }},
		{"mean", func(r *Record) float64 { return r.Mean }},
		{"median", func(r *Record) float64 { return r.Median }},
		{"min", func(r *Record) float64 { return r.Min }},
	}},
	{"impact", []metric{
		{"duration_s", func(r *Record) float64 { return r.DurationS }},
		{"emissions_kg", func(r *Record) float64 { return r.EmissionsKg }},
		{"emissions_rate_kg_per_sec", func(r *Record) float64 { return r.EmissionsRateKgPerSec }},
		{"energy_consumed_kwh", func(r *Record) float64 { return r.EnergyConsumedKWh }},
	}},
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type apiParamsFunc func(string) map[string]string

var apiParamsFuncs = map[string]apiParamsFunc{
	"/influx/write":        influxDBAPIParams,
	"/influx/api/v2/write": influxDBAPIParams,
	"/write":               influxDBAPIParams,
	"/api/v2/write":        influxDBAPIParams,
	"/api/v1/import/csv":   csvAPIParams,
}

func influxDBAPIParams(metricPrefix string) map[string]string {
	return nil
}

// csvLabels are the label columns following the timestamp in a CSV row.
var csvLabels = []string{"file", "variable", "run_id"}

func csvAPIParams(metricPrefix string) map[string]string {
	cols := []string{"1:time:unix_ms"}
	for _, l := range csvLabels {
		cols = append(cols, fmt.Sprintf("%d:label:%s", len(cols)+1, l))
	}
	for _, m := range measurements {
		for _, mt := range m.metrics {
			cols = append(cols, fmt.Sprintf("%d:metric:%s_%s_%s", len(cols)+1, metricPrefix, m.name, mt.name))
		}
	}
	return map[string]string{"format": strings.Join(cols, ",")}
}

type recToTextFunc func(*strings.Builder, *Record, string)

// recsToText converts multiple records to text.
func recsToText(recs []Record, metricPrefix string, recToText recToTextFunc) string {
	var sb strings.Builder
	for _, r := range recs {
		recToText(&sb, &r, metricPrefix)
	}
	return sb.String()
}

var recToTextFuncs = map[string]recToTextFunc{
	"/influx/write":        recToInfluxDB,
	"/influx/api/v2/write": recToInfluxDB,
	"/write":               recToInfluxDB,
	"/api/v2/write":        recToInfluxDB,
	"/api/v1/import/csv":   recToCSV,
}

var escaper = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)

// recToInfluxDB appends one InfluxDB line per measurement of r. A
// measurement without finite values is skipped.
func recToInfluxDB(sb *strings.Builder, r *Record, metricPrefix string) {
	var tags strings.Builder
	for _, kv := range [][2]string{{"file", r.File}, {"run_id", r.RunID}, {"variable", r.Variable}} {
		if kv[1] == "" {
			continue
		}
		tags.WriteString(",")
		tags.WriteString(kv[0])
		tags.WriteString("=")
		tags.WriteString(escaper.Replace(kv[1]))
	}

	for _, m := range measurements {
		fields := make([]string, 0, len(m.metrics))
		for _, mt := range m.metrics {
			if v := mt.value(r); finite(v) {
				fields = append(fields, mt.name+"="+strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		if len(fields) == 0 {
			continue
		}
		sb.WriteString(metricPrefix)
		sb.WriteString("_")
		sb.WriteString(m.name)
		sb.WriteString(tags.String())
		sb.WriteString(" ")
		sb.WriteString(strings.Join(fields, ","))
		if !r.Time.IsZero() {
			sb.WriteString(" ")
			sb.WriteString(strconv.FormatInt(r.Time.UnixNano(), 10))
		}
		sb.WriteString("\n")
	}
}

// recToCSV appends r as one CSV row in the column order of csvAPIParams.
// Non-finite values are left empty.
func recToCSV(sb *strings.Builder, r *Record, _ string) {
	row := []string{strconv.FormatInt(r.Time.UnixMilli(), 10), r.File, r.Variable, r.RunID}
	for _, m := range measurements {
		for _, mt := range m.metrics {
			v := mt.value(r)
			if !finite(v) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	w := csv.NewWriter(sb)
	// Only fails when writing to sb fails, which it does not.
	_ = w.Write(row)
	w.Flush()
}
