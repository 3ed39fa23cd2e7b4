package db

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/evotodo/todo-api/internal/infra/db"

// TracingPlugin opens one client span per gorm operation.
type TracingPlugin struct {
	tracer trace.Tracer
}

func NewTracingPlugin(tp trace.TracerProvider) *TracingPlugin {
	return &TracingPlugin{tracer: tp.Tracer(tracerName)}
}

// RegisterOpenTelemetryPlugin installs the tracing plugin using the global
// tracer provider. Call it after telemetry.SetupTracing.
func RegisterOpenTelemetryPlugin(d *gorm.DB) error {
	return d.Use(NewTracingPlugin(otel.GetTracerProvider()))
}

func (p *TracingPlugin) Name() string { return "otel-tracing" }

func (p *TracingPlugin) Initialize(d *gorm.DB) error {
	cb := d.Callback()
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("gorm.Create")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("gorm.Query")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("gorm.Update")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("gorm.Delete")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("gorm.Row")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("gorm.Raw")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after)
}

func (p *TracingPlugin) before(spanName string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Statement == nil || tx.Statement.Context == nil {
			return
		}
		ctx, _ := p.tracer.Start(tx.Statement.Context, spanName, trace.WithSpanKind(trace.SpanKindClient))
		tx.Statement.Context = ctx
	}
}

func (p *TracingPlugin) after(tx *gorm.DB) {
	if tx.Statement == nil || tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", tx.Dialector.Name()),
		attribute.String("db.sql.table", tx.Statement.Table),
		attribute.String("db.statement", tx.Statement.SQL.String()),
		attribute.Int64("db.rows_affected", tx.Statement.RowsAffected),
	)
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
		span.SetStatus(codes.Error, tx.Error.Error())
	}
}
