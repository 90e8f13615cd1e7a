package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/labgrid/pkg/metrics"
)

// Storage persists and queries audit records.
type Storage interface {
	Store(ctx context.Context, r Record) error
	Query(ctx context.Context, c Criteria) ([]Record, error)
}

// StorageCounter is implemented by storages with a native count.
type StorageCounter interface {
	Count(ctx context.Context, c Criteria) (int64, error)
}

// contextExtractor extracts string values from context.
// It returns (value, found) where found indicates if extraction succeeded.
type contextExtractor func(context.Context) (string, bool)

// Logger appends audit records.
type Logger struct {
	storage            Storage
	filter             *FieldFilter
	requestIDExtractor contextExtractor
	ipExtractor        contextExtractor
	now                func() time.Time
}

// Option configures Logger behavior during initialization.
type Option func(*Logger)

func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

func WithIPExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.ipExtractor = fn
	}
}

// WithFieldFilter replaces the default detail field filter.
func WithFieldFilter(f *FieldFilter) Option {
	return func(l *Logger) {
		if f != nil {
			l.filter = f
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{
		storage: storage,
		filter:  NewFieldFilter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends one record for action.
func (l *Logger) Log(ctx context.Context, action Action, opts ...RecordOption) error {
	r := Record{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: l.now().UTC(),
	}
	if l.requestIDExtractor != nil {
		if id, ok := l.requestIDExtractor(ctx); ok {
			r.RequestID = id
		}
	}
	if l.ipExtractor != nil {
		if ip, ok := l.ipExtractor(ctx); ok {
			r.IP = ip
		}
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.Details.Fields = l.filter.Filter(r.Details.Fields)

	if err := r.Validate(); err != nil {
		metrics.AuditWrites.WithLabelValues(string(action), metrics.ResultFailed).Inc()
		return err
	}
	if err := l.storage.Store(ctx, r); err != nil {
		metrics.AuditWrites.WithLabelValues(string(action), metrics.ResultFailed).Inc()
		return err
	}
	metrics.AuditWrites.WithLabelValues(string(action), metrics.ResultOK).Inc()
	return nil
}

// Reader queries audit records.
type Reader struct {
	storage Storage
}

// NewReader creates a new audit reader.
func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// Find retrieves records matching c, newest first.
func (r *Reader) Find(ctx context.Context, c Criteria) ([]Record, error) {
	return r.storage.Query(ctx, c)
}

// Count returns the number of records matching c.
// Storages without a native count are counted in memory.
func (r *Reader) Count(ctx context.Context, c Criteria) (int64, error) {
	if counter, ok := r.storage.(StorageCounter); ok {
		return counter.Count(ctx, c)
	}
	c.Limit, c.Offset = 0, 0
	recs, err := r.storage.Query(ctx, c)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}
