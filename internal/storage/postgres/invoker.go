// Package postgres implements the data layer on top of named PostgreSQL
// stored procedures. Every request-path query goes through Invoker.
package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

// DefaultCallTimeout bounds a single procedure call when no timeout is
// configured.
const DefaultCallTimeout = 5 * time.Second

// DB is the subset of pgx used by the invoker. It is satisfied by
// *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Call is a typed request for one stored procedure. Args must return the
// values in the procedure's declared parameter order.
type Call interface {
	Procedure() string
	Args() []any
}

// Row is one result row with its columns in result order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	CallTimeout    time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o *InvokerOptions) setDefaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
}

// Invoker calls stored procedures with bound parameters and a per-call
// timeout, mapping every failure to an apperr.KindDataAccess error.
type Invoker struct {
	db       DB
	timeout  time.Duration
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewInvoker returns an Invoker running against db.
func NewInvoker(db DB, opts InvokerOptions) (*Invoker, error) {
	opts.setDefaults()

	duration, err := opts.MeterProvider.Meter("bookclub/postgres").Float64Histogram(
		"db.procedure.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Stored procedure call duration"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return &Invoker{
		db:       db,
		timeout:  opts.CallTimeout,
		tracer:   opts.TracerProvider.Tracer("bookclub/postgres"),
		duration: duration,
	}, nil
}

// withDB returns a copy of the invoker bound to another connection.
func (inv *Invoker) withDB(db DB) *Invoker {
	cp := *inv
	cp.db = db
	return &cp
}

// Invoke runs call and returns every row it produced. An empty result is
// not an error.
func (inv *Invoker) Invoke(ctx context.Context, call Call) ([]Row, error) {
	return Collect(ctx, inv, call, toRow)
}

// Collect runs call and maps each row with fn. Use pgx.RowToStructByName
// and friends for typed results.
func Collect[T any](ctx context.Context, inv *Invoker, call Call, fn pgx.RowToFunc[T]) ([]T, error) {
	var out []T
	err := inv.run(ctx, call, func(rows pgx.Rows) (int, error) {
		var err error
		out, err = pgx.CollectRows(rows, fn)
		return len(out), err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First runs call and returns its first row mapped with fn. The boolean is
// false when the procedure produced no rows.
func First[T any](ctx context.Context, inv *Invoker, call Call, fn pgx.RowToFunc[T]) (T, bool, error) {
	var zero T
	out, err := Collect(ctx, inv, call, fn)
	if err != nil || len(out) == 0 {
		return zero, false, err
	}
	return out[0], true, nil
}

func (inv *Invoker) run(ctx context.Context, call Call, collect func(pgx.Rows) (int, error)) error {
	name := call.Procedure()
	args := call.Args()

	ctx, span := inv.tracer.Start(ctx, "procedure "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", name),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	n, err := inv.query(ctx, name, args, collect)
	elapsed := time.Since(start)
	inv.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("procedure", name),
		attribute.Bool("error", err != nil),
	))

	lg := zctx.From(ctx).With(zap.String("procedure", name), zap.Duration("duration", elapsed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "procedure failed")
		lg.Error("Procedure call failed", zap.Error(err))
		return apperr.DataAccess("calling "+name, err)
	}

	span.SetAttributes(attribute.Int("db.response.returned_rows", n))
	lg.Debug("Procedure called", zap.Int("args", len(args)), zap.Int("rows", n))
	return nil
}

func (inv *Invoker) query(ctx context.Context, name string, args []any, collect func(pgx.Rows) (int, error)) (int, error) {
	rows, err := inv.db.Query(ctx, Statement(name, len(args)), args...)
	if err != nil {
		return 0, errors.Wrap(err, "query")
	}
	// CollectRows closes rows; the deferred Close covers early returns.
	defer rows.Close()

	n, err := collect(rows)
	if err != nil {
		return n, errors.Wrap(err, "collect rows")
	}
	return n, nil
}

// Statement builds the SQL text calling procedure name with n positional
// parameters. The name is quoted as an identifier; values are never part of
// the text.
func Statement(name string, n int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{name}.Sanitize())
	b.WriteByte('(')
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i + 1))
	}
	b.WriteByte(')')
	return b.String()
}

// WithinTx runs fn with an invoker bound to one transaction. The
// transaction commits when fn returns nil and rolls back otherwise,
// including on panic.
func (inv *Invoker) WithinTx(ctx context.Context, fn func(tx *Invoker) error) error {
	tx, err := inv.db.Begin(ctx)
	if err != nil {
		return apperr.DataAccess("begin transaction", err)
	}
	// A failed Commit closes the transaction, so rollback is only needed
	// before it.
	committing := false
	defer func() {
		if committing {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zctx.From(ctx).Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(inv.withDB(tx)); err != nil {
		return err
	}
	committing = true
	if err := tx.Commit(ctx); err != nil {
		return apperr.DataAccess("commit transaction", err)
	}
	return nil
}

func toRow(row pgx.CollectableRow) (Row, error) {
	fields := row.FieldDescriptions()
	values, err := row.Values()
	if err != nil {
		return Row{}, err
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return Row{Columns: cols, Values: values}, nil
}
