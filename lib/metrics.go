package rapidpro

import (
	"context"
	"net/http"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

const (
	METRIC_RECORDS_FETCHED       = "rapidpro_syncer.records.fetched"
	METRIC_RECORDS_LOADED        = "rapidpro_syncer.records.loaded"
	METRIC_LOAD_ERRORS           = "rapidpro_syncer.load.errors"
	METRIC_SYNC_DURATION_SECONDS = "rapidpro_syncer.sync.duration_seconds"
)

type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Buffers per-table counts during a sync and submits them to Datadog once at the end.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Config    *Config
	submitter metricsSubmitter
	now       func() time.Time

	mu       sync.Mutex
	counts   map[string]map[string]float64 // metric -> table -> value
	duration time.Duration
}

// Nil when Datadog is disabled, DD_API_KEY and DD_SITE are read by the Datadog client
func NewMetrics(config *Config) *Metrics {
	if !config.BaseConfig.DatadogEnabled {
		return nil
	}
	return newMetrics(config, datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration())))
}

func newMetrics(config *Config, submitter metricsSubmitter) *Metrics {
	return &Metrics{
		Config:    config,
		submitter: submitter,
		now:       time.Now,
		counts:    make(map[string]map[string]float64),
	}
}

func (metrics *Metrics) Count(metric string, table string, value int) {
	if metrics == nil {
		return
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	if metrics.counts[metric] == nil {
		metrics.counts[metric] = make(map[string]float64)
	}
	metrics.counts[metric][table] += float64(value)
}

func (metrics *Metrics) SetDuration(duration time.Duration) {
	if metrics == nil {
		return
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	metrics.duration = duration
}

func (metrics *Metrics) Flush(ctx context.Context) error {
	if metrics == nil {
		return nil
	}

	series := metrics.buildSeries(metrics.now().Unix())
	if len(series) == 0 {
		return nil
	}

	common.LogDebug(metrics.Config.BaseConfig, "Submitting", len(series), "metric series to Datadog")
	_, _, err := metrics.submitter.SubmitMetrics(dd.NewDefaultContext(ctx), datadogV2.MetricPayload{Series: series}, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// Series sorted by metric and table
func (metrics *Metrics) buildSeries(nowUnix int64) []datadogV2.MetricSeries {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	destinationTag := "destination:" + metrics.Config.BaseConfig.Destination
	if metrics.Config.DryRun {
		destinationTag = "destination:dry-run"
	}

	series := []datadogV2.MetricSeries{}
	for _, metric := range common.SortedKeys(metrics.counts) {
		for _, table := range common.SortedKeys(metrics.counts[metric]) {
			series = append(series, metricSeries(metric, datadogV2.METRICINTAKETYPE_COUNT, metrics.counts[metric][table], nowUnix, "table:"+table, destinationTag))
		}
	}

	if metrics.duration > 0 {
		series = append(series, metricSeries(METRIC_SYNC_DURATION_SECONDS, datadogV2.METRICINTAKETYPE_GAUGE, metrics.duration.Seconds(), nowUnix, destinationTag))
	}

	return series
}

func metricSeries(metric string, intakeType datadogV2.MetricIntakeType, value float64, nowUnix int64, tags ...string) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   intakeType.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}
