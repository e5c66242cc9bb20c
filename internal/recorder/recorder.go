package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/woostream/internal/metrics"
	"github.com/rickgao/woostream/internal/stream"
)

// Columns written for each message, in CopyFrom order.
var Columns = []string{"id", "channel", "received_at", "event", "topic", "payload"}

// Inserter bulk-loads rows. *pgxpool.Pool satisfies it.
type Inserter interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Config configures a Recorder.
type Config struct {
	Table         string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
	FlushTimeout  time.Duration // Per-batch write deadline
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:         "stream_messages",
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
		FlushTimeout:  10 * time.Second,
	}
}

// Stats holds recorder counters.
type Stats struct {
	Rows    int64
	Flushes int64
	Errors  int64
	Dropped int64
}

// Record is one received message.
type Record struct {
	Channel    string
	ReceivedAt time.Time
	Message    stream.Message
}

type row struct {
	ID         uuid.UUID
	Channel    string
	ReceivedAt int64 // µs since epoch
	Event      string
	Topic      string
	Payload    []byte
}

func (r row) values() []any {
	return []any{r.ID, r.Channel, r.ReceivedAt, r.Event, r.Topic, r.Payload}
}

// Recorder persists stream messages in batches.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	db     Inserter
	input  *stream.Queue[Record]

	batch   []row
	batchMu sync.Mutex
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Recorder writing to db.
func New(cfg Config, db Inserter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	d := DefaultConfig()
	if cfg.Table == "" {
		cfg.Table = d.Table
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = d.FlushTimeout
	}

	return &Recorder{
		cfg:    cfg,
		logger: logger,
		db:     db,
		input:  stream.NewQueue[Record](cfg.BufferSize),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Record queues msg for writing. It never blocks; it returns false if the
// buffer was full and the message was dropped.
func (r *Recorder) Record(channel string, msg stream.Message) bool {
	ok := r.input.Push(Record{
		Channel:    channel,
		ReceivedAt: time.Now(),
		Message:    msg,
	})
	if !ok {
		metrics.RecorderDropped.Inc()
	}
	return ok
}

// Wrap returns a handler that records each message before calling next.
// next may be nil.
func (r *Recorder) Wrap(channel string, next stream.Handler) stream.Handler {
	return func(msg stream.Message) {
		r.Record(channel, msg)
		if next != nil {
			next(msg)
		}
	}
}

// Start begins consuming queued messages.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.consumeLoop()
	go r.flushLoop()

	r.logger.Info("recorder started",
		"table", r.cfg.Table,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what is already queued, flushes and stops.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	for {
		rec, ok := r.input.TryRecv()
		if !ok {
			break
		}
		r.add(rec)
	}
	r.flush()

	r.logger.Info("recorder stopped", "rows", r.Stats().Rows)
	return nil
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()

	s := r.stats
	s.Dropped = r.input.Dropped()
	return s
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		rec, err := r.input.Recv(r.ctx, 0)
		if err != nil {
			return
		}
		if r.add(rec) {
			r.flush()
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

// add appends rec to the batch and reports whether the batch is full.
func (r *Recorder) add(rec Record) bool {
	rw, err := transform(rec)
	if err != nil {
		r.logger.Debug("skipping unencodable message", "channel", rec.Channel, "error", err)
		return false
	}

	r.batchMu.Lock()
	defer r.batchMu.Unlock()

	r.batch = append(r.batch, rw)
	return len(r.batch) >= r.cfg.BatchSize
}

func transform(rec Record) (row, error) {
	payload, err := json.Marshal(rec.Message)
	if err != nil {
		return row{}, fmt.Errorf("encode payload: %w", err)
	}

	return row{
		ID:         uuid.New(),
		Channel:    rec.Channel,
		ReceivedAt: rec.ReceivedAt.UnixMicro(),
		Event:      rec.Message.Event(),
		Topic:      rec.Message.Topic(),
		Payload:    payload,
	}, nil
}

// flush writes the current batch.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]row, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	// Detached so the final flush survives cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FlushTimeout)
	defer cancel()

	rows := make([][]any, len(batch))
	for i, rw := range batch {
		rows[i] = rw.values()
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{r.cfg.Table}, Columns, pgx.CopyFromRows(rows))
	if err != nil {
		metrics.RecorderFlushErrors.Inc()
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))

		r.batchMu.Lock()
		r.stats.Errors++
		r.batchMu.Unlock()
		return
	}

	metrics.RecorderRows.Add(float64(n))

	r.batchMu.Lock()
	r.stats.Rows += n
	r.stats.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed messages",
		"count", n,
		"duration", time.Since(start),
	)
}
