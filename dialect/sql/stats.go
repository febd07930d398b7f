package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/silo/dialect"
)

// QueryEvent describes one statement executed through an ObservedDriver.
type QueryEvent struct {
	Query    string
	Args     []any
	Exec     bool // executed with Exec (DDL, DML) rather than Query
	InTx     bool
	Duration time.Duration
	Err      error
}

// Observer is called after every statement executed through an ObservedDriver.
type Observer func(ctx context.Context, ev QueryEvent)

// ObservedDriver wraps a dialect.Driver and reports every statement and
// its duration to a list of observers. Wrappers compose: an observed
// driver may itself wrap another observed driver.
type ObservedDriver struct {
	dialect.Driver
	observers []Observer
}

// Observe wraps the driver with the given observers.
func Observe(drv dialect.Driver, observers ...Observer) *ObservedDriver {
	return &ObservedDriver{Driver: drv, observers: observers}
}

// Query executes a query and notifies the observers.
func (d *ObservedDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.notify(ctx, query, args, start, err, false, false)
	return err
}

// Exec executes a statement and notifies the observers.
func (d *ObservedDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.notify(ctx, query, args, start, err, true, false)
	return err
}

// Tx starts a transaction whose statements are observed as well.
func (d *ObservedDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &ObservedTx{Tx: tx, driver: d}, nil
}

func (d *ObservedDriver) notify(ctx context.Context, query string, args any, start time.Time, err error, exec, inTx bool) {
	argv, _ := args.([]any)
	ev := QueryEvent{
		Query:    query,
		Args:     argv,
		Exec:     exec,
		InTx:     inTx,
		Duration: time.Since(start),
		Err:      err,
	}
	for _, o := range d.observers {
		o(ctx, ev)
	}
}

// ObservedTx is a transaction started by an ObservedDriver.
type ObservedTx struct {
	dialect.Tx
	driver *ObservedDriver
}

// Query executes a query within the transaction and notifies the observers.
func (tx *ObservedTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.notify(ctx, query, args, start, err, false, true)
	return err
}

// Exec executes a statement within the transaction and notifies the observers.
func (tx *ObservedTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.notify(ctx, query, args, start, err, true, true)
	return err
}

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, duration time.Duration)

// StatsDriver wraps a driver with query statistics collection.
type StatsDriver struct {
	*ObservedDriver
	stats         *QueryStats
	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query)
	})
}

// NewStatsDriver wraps a driver with statistics collection.
//
// Example:
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(slog.Default()),
//	)
//	env := record.NewEnvironment(reg, stats)
//	...
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ObservedDriver = Observe(drv, s.record)
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

func (d *StatsDriver) record(ctx context.Context, ev QueryEvent) {
	if ev.Exec {
		d.stats.TotalExecs.Add(1)
	} else {
		d.stats.TotalQueries.Add(1)
	}
	d.stats.TotalDuration.Add(int64(ev.Duration))
	if ev.Err != nil {
		d.stats.Errors.Add(1)
	}
	d.mu.RLock()
	threshold, hook := d.slowThreshold, d.slowHook
	d.mu.RUnlock()
	if ev.Duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, ev.Query, ev.Duration)
		}
	}
}

// LogObserver returns an observer logging every statement at the given level.
// Failed statements are logged at error level.
func LogObserver(logger *slog.Logger, level slog.Level) Observer {
	return func(ctx context.Context, ev QueryEvent) {
		attrs := []slog.Attr{
			slog.String("query", ev.Query),
			slog.Duration("duration", ev.Duration),
			slog.Bool("tx", ev.InTx),
		}
		if ev.Err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "statement failed", append(attrs, slog.Any("error", ev.Err))...)
			return
		}
		msg := "query"
		if ev.Exec {
			msg = "exec"
		}
		logger.LogAttrs(ctx, level, msg, attrs...)
	}
}

// NewDebugDriver wraps a driver with statement logging at debug level.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *ObservedDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return Observe(drv, LogObserver(logger, slog.LevelDebug))
}

// Ensure interfaces are implemented.
var (
	_ dialect.Driver = (*ObservedDriver)(nil)
	_ dialect.Tx     = (*ObservedTx)(nil)
	_ dialect.Driver = (*StatsDriver)(nil)
)
