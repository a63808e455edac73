// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled          bool          // Enable database tracing
	LogFullSQL       bool          // Include full SQL statements in spans, dev only
	SlowQueryThresh  time.Duration // Threshold for marking queries as slow
	DBSystem         string        // Database system name
	WithoutVariables bool          // Exclude query variables from SQL statement
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin wraps the otelgorm plugin and layers slow query
// detection and error marking on top of the spans it creates.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm registers otelgorm plus the timing callbacks on the
// given GORM DB instance. A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		// keep query parameters out of spans
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerTimingCallbacks(db, "otel_timing", p.markQueryStart, p.annotateSpan); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// markQueryStart stamps the statement context so annotateSpan can compute
// elapsed time after the operation completes.
func (p *DBTracingPlugin) markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotateSpan runs after each operation to mark slow queries and errors
// on the active span.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// record-not-found is a normal lookup miss, not a span error
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

// registerTimingCallbacks hooks before/after callbacks around every GORM
// operation type under the given name prefix.
func registerTimingCallbacks(db *gorm.DB, prefix string, before, after func(*gorm.DB)) error {
	registrations := []struct {
		op       string
		register func(anchor, name string, when string, fn func(*gorm.DB)) error
	}{
		{"create", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Create().Before(anchor).Register(name, fn)
			}
			return db.Callback().Create().After(anchor).Register(name, fn)
		}},
		{"query", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Query().Before(anchor).Register(name, fn)
			}
			return db.Callback().Query().After(anchor).Register(name, fn)
		}},
		{"update", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Update().Before(anchor).Register(name, fn)
			}
			return db.Callback().Update().After(anchor).Register(name, fn)
		}},
		{"delete", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Delete().Before(anchor).Register(name, fn)
			}
			return db.Callback().Delete().After(anchor).Register(name, fn)
		}},
		{"row", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Row().Before(anchor).Register(name, fn)
			}
			return db.Callback().Row().After(anchor).Register(name, fn)
		}},
		{"raw", func(anchor, name, when string, fn func(*gorm.DB)) error {
			if when == "before" {
				return db.Callback().Raw().Before(anchor).Register(name, fn)
			}
			return db.Callback().Raw().After(anchor).Register(name, fn)
		}},
	}

	for _, r := range registrations {
		anchor := "gorm:" + r.op
		if before != nil {
			if err := r.register(anchor, prefix+":before_"+r.op, "before", before); err != nil {
				return err
			}
		}
		if after != nil {
			if err := r.register(anchor, prefix+":after_"+r.op, "after", after); err != nil {
				return err
			}
		}
	}
	return nil
}

// queryStartTimeKey is the context key for storing query start time.
type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"
