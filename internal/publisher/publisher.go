// Package publisher turns classified events into the two durable artifacts
// read by the dashboard: the append-only alert log and the statistics
// document.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"Go2NetGuard/internal/metrics"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/snapshot"

	"github.com/google/uuid"
)

// Options configures a Publisher.
type Options struct {
	AlertsPath string
	StatsPath  string
	Fsync      bool
	// FlushEvery is the number of events between statistics writes.
	FlushEvery int

	Source      string
	Synthetic   bool
	ModelDigest string

	Sinks   []model.AlertSink
	Metrics *metrics.Metrics
}

// Publisher is the single writer of the alert log and the statistics
// document. Publish must be called from one goroutine; Latest may be called
// from any.
type Publisher struct {
	alerts  *AlertLog
	writer  *snapshot.Writer
	sinks   []model.AlertSink
	metrics *metrics.Metrics

	stats      *stats
	seq        uint64
	flushEvery int
	pending    int
	closed     bool
}

// New opens both artifacts and starts a new run. The zeroed statistics of
// the run are written immediately so that readers observe the reset.
func New(opts Options) (*Publisher, error) {
	alerts, err := OpenAlertLog(opts.AlertsPath, opts.Fsync)
	if err != nil {
		return nil, err
	}
	writer, err := snapshot.NewWriter(opts.StatsPath, opts.Fsync)
	if err != nil {
		alerts.Close()
		return nil, err
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 1
	}
	p := &Publisher{
		alerts:     alerts,
		writer:     writer,
		sinks:      opts.Sinks,
		metrics:    opts.Metrics,
		flushEvery: flushEvery,
		stats: &stats{
			runID:       uuid.NewString(),
			startedAt:   time.Now().UTC(),
			source:      opts.Source,
			synthetic:   opts.Synthetic,
			modelDigest: opts.ModelDigest,
			byProtocol:  make(map[string]uint64),
		},
	}
	p.stats.lastUpdated = p.stats.startedAt

	if err := p.writer.Write(p.stats.snapshot()); err != nil {
		alerts.Close()
		return nil, fmt.Errorf("failed to write initial statistics: %w", err)
	}
	log.Printf("Publisher: started run %s (alerts: %s, stats: %s)", p.stats.runID, opts.AlertsPath, opts.StatsPath)
	return p, nil
}

// RunID identifies the current run.
func (p *Publisher) RunID() string {
	return p.stats.runID
}

// Publish records one classified event. Statistics are updated for every
// event and an AlertRecord is appended only for attacks. A returned error
// means a primary artifact could not be written and the run must stop.
func (p *Publisher) Publish(ctx context.Context, ev *model.RawEvent, pred model.Prediction) error {
	start := time.Now()
	proto := strings.ToLower(strings.TrimSpace(ev.Protocol))
	if proto == "" {
		proto = "unknown"
	}

	// A failed append leaves the counters untouched.
	if pred.IsAttack() {
		p.seq++
		rec := p.newRecord(ev, pred, proto)
		if err := p.alerts.Append(rec); err != nil {
			p.seq--
			return err
		}
		p.fanOut(ctx, rec)
	}

	p.stats.record(pred, proto, start.UTC())
	p.metrics.ObserveEvent(ev.Origin, pred.IsAttack())

	p.pending++
	if p.pending >= p.flushEvery {
		if err := p.Flush(); err != nil {
			return err
		}
	}
	p.metrics.ObservePublish(time.Since(start).Seconds())
	return nil
}

func (p *Publisher) newRecord(ev *model.RawEvent, pred model.Prediction, proto string) *model.AlertRecord {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &model.AlertRecord{
		Seq:       p.seq,
		Timestamp: ts.UTC(),
		SrcIP:     ipString(ev.SrcIP),
		SrcPort:   ev.SrcPort,
		DstIP:     ipString(ev.DstIP),
		DstPort:   ev.DstPort,
		Protocol:  proto,
		Size:      ev.Length,
		Label:     pred.Label,
		Score:     pred.Score,
		Origin:    ev.Origin,
		RunID:     p.stats.runID,
	}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// fanOut mirrors rec to every sink. Sink failures never stop the pipeline.
func (p *Publisher) fanOut(ctx context.Context, rec *model.AlertRecord) {
	for _, s := range p.sinks {
		if err := s.WriteAlert(ctx, rec); err != nil {
			p.metrics.IncSinkError(s.Name())
			log.Printf("Publisher: sink %s failed for alert %d: %v", s.Name(), rec.Seq, err)
		}
	}
}

// Flush writes the current statistics document.
func (p *Publisher) Flush() error {
	p.pending = 0
	if err := p.writer.Write(p.stats.snapshot()); err != nil {
		return fmt.Errorf("failed to publish statistics: %w", err)
	}
	return nil
}

// Latest returns a copy of the current statistics, including updates not yet
// flushed.
func (p *Publisher) Latest() *model.StatisticsSnapshot {
	return p.stats.snapshot()
}

// Close flushes the statistics and closes the alert log and every sink.
func (p *Publisher) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := p.alerts.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close alert log: %w", err))
	}
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			log.Printf("Publisher: failed to close sink %s: %v", s.Name(), err)
		}
	}
	return errors.Join(errs...)
}
