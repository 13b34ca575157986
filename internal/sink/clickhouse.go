package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createAlertsTable = `
CREATE TABLE IF NOT EXISTS nids_alerts (
    Timestamp   DateTime64(6),
    RunID       String,
    Seq         UInt64,
    SrcIP       String,
    SrcPort     UInt16,
    DstIP       String,
    DstPort     UInt16,
    Protocol    LowCardinality(String),
    Size        Int64,
    Score       Float64,
    Origin      LowCardinality(String)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Seq);
`

const (
	chBatchSize     = 500
	chFlushInterval = time.Second
	chQueueSize     = 10000
)

// ErrQueueFull is returned when a sink cannot keep up with the alert rate.
var ErrQueueFull = errors.New("sink queue full")

// ClickHouseSink batches alerts in a background worker and inserts them into
// the nids_alerts table.
type ClickHouseSink struct {
	conn  driver.Conn
	flush func(ctx context.Context, batch []*model.AlertRecord) error

	queue    chan *model.AlertRecord
	done     chan struct{}
	wg       sync.WaitGroup
	interval time.Duration
	once     sync.Once
}

// NewClickHouseSink connects, ensures the table exists and starts the worker.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createAlertsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	s := newBatchingSink(nil, chFlushInterval)
	s.conn = conn
	s.flush = s.insert
	s.start()
	return s, nil
}

func newBatchingSink(flush func(context.Context, []*model.AlertRecord) error, interval time.Duration) *ClickHouseSink {
	return &ClickHouseSink{
		flush:    flush,
		queue:    make(chan *model.AlertRecord, chQueueSize),
		done:     make(chan struct{}),
		interval: interval,
	}
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name implements model.AlertSink.
func (s *ClickHouseSink) Name() string {
	return "clickhouse"
}

// WriteAlert queues rec without blocking the pipeline.
func (s *ClickHouseSink) WriteAlert(_ context.Context, rec *model.AlertRecord) error {
	select {
	case s.queue <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *ClickHouseSink) start() {
	s.wg.Add(1)
	go s.run()
}

func (s *ClickHouseSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	batch := make([]*model.AlertRecord, 0, chBatchSize)
	send := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.flush(context.Background(), batch); err != nil {
			log.Printf("ClickHouseSink: dropping %d alerts: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= chBatchSize {
				send()
			}
		case <-ticker.C:
			send()
		case <-s.done:
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
				default:
					send()
					return
				}
			}
		}
	}
}

// insert writes one batch into the nids_alerts table.
func (s *ClickHouseSink) insert(ctx context.Context, alerts []*model.AlertRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO nids_alerts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, a := range alerts {
		err = batch.Append(
			a.Timestamp,
			a.RunID,
			a.Seq,
			a.SrcIP,
			a.SrcPort,
			a.DstIP,
			a.DstPort,
			a.Protocol,
			int64(a.Size),
			a.Score,
			a.Origin,
		)
		if err != nil {
			return fmt.Errorf("failed to append alert to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close flushes queued alerts and closes the connection.
func (s *ClickHouseSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.conn != nil {
			err = s.conn.Close()
		}
	})
	return err
}
