package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	ChatRequestsTotal            metric.Int64Counter
	PipelineRunsTotal            metric.Int64Counter
	PipelineStageDurationSeconds metric.Float64Histogram
	SafetyBlocksTotal            metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("skinsage")
		var err error
		m := &AppMetrics{}

		m.ChatRequestsTotal, err = meter.Int64Counter(
			"chat_requests_total",
			metric.WithDescription("Total number of chat requests received"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_requests_total: %v", err)
		}

		m.PipelineRunsTotal, err = meter.Int64Counter(
			"pipeline_runs_total",
			metric.WithDescription("Total number of recommendation pipeline executions"),
			metric.WithUnit("{run}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create pipeline_runs_total: %v", err)
		}

		m.PipelineStageDurationSeconds, err = meter.Float64Histogram(
			"pipeline_stage_duration_seconds",
			metric.WithDescription("Duration of each pipeline stage in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create pipeline_stage_duration_seconds: %v", err)
		}

		m.SafetyBlocksTotal, err = meter.Int64Counter(
			"safety_blocks_total",
			metric.WithDescription("Total number of recommendations blocked by the safety gate"),
			metric.WithUnit("{block}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create safety_blocks_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		// This indicates a programming error - InitAppMetrics must be called at startup.
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
