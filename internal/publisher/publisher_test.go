package publisher

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetGuard/internal/metrics"
	"Go2NetGuard/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

type memorySink struct {
	name    string
	fail    bool
	records []*model.AlertRecord
	closed  bool
}

func (s *memorySink) WriteAlert(_ context.Context, rec *model.AlertRecord) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.records = append(s.records, rec)
	return nil
}
func (s *memorySink) Name() string { return s.name }
func (s *memorySink) Close() error  { s.closed = true; return nil }

func newTestPublisher(t *testing.T, opts Options) (*Publisher, Options) {
	t.Helper()
	dir := t.TempDir()
	opts.AlertsPath = filepath.Join(dir, "alerts.jsonl")
	opts.StatsPath = filepath.Join(dir, "nids_stats.json")
	if opts.Source == "" {
		opts.Source = "replay:test.pcap"
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, opts
}

func event(proto string) *model.RawEvent {
	return &model.RawEvent{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SrcIP:     net.IPv4(10, 0, 0, 5),
		DstIP:     net.IPv4(192, 168, 1, 1),
		SrcPort:   51000,
		DstPort:   22,
		Protocol:  proto,
		Length:    60,
		Origin:    model.OriginReplay,
	}
}

var (
	normal = model.Prediction{Label: model.LabelNormal, Score: 0.1}
	attack = model.Prediction{Label: model.LabelAttack, Score: 0.9}
)

func readStats(t *testing.T, path string) model.StatisticsSnapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	var s model.StatisticsSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("stats are not valid json: %v", err)
	}
	return s
}

func readAlerts(t *testing.T, path string) []model.AlertRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open alerts: %v", err)
	}
	defer f.Close()

	var out []model.AlertRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r model.AlertRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("alert line %q is not valid json: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	return out
}

func TestNew_WritesResetImmediately(t *testing.T) {
	p, opts := newTestPublisher(t, Options{Synthetic: true, ModelDigest: "abc"})
	defer p.Close()

	s := readStats(t, opts.StatsPath)
	if s.TotalEvents != 0 || s.RunID != p.RunID() || !s.Synthetic || s.ModelDigest != "abc" {
		t.Fatalf("unexpected initial stats %+v", s)
	}
	if info, err := os.Stat(opts.AlertsPath); err != nil || info.Size() != 0 {
		t.Fatalf("alert log should exist and be empty, got %v %v", info, err)
	}
}

func TestPublish_CountsAndAlerts(t *testing.T) {
	sink := &memorySink{name: "memory"}
	p, opts := newTestPublisher(t, Options{Sinks: []model.AlertSink{sink}})

	preds := []model.Prediction{normal, attack, normal, attack, attack}
	protos := []string{"tcp", "tcp", "udp", "ICMP", "tcp"}
	ctx := context.Background()
	for i := range preds {
		if err := p.Publish(ctx, event(protos[i]), preds[i]); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		s := readStats(t, opts.StatsPath)
		if s.TotalEvents != uint64(i+1) || !s.Consistent() {
			t.Fatalf("after %d publishes stats are %+v", i+1, s)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s := readStats(t, opts.StatsPath)
	if s.NormalCount != 2 || s.AttackCount != 3 {
		t.Errorf("counts = %d normal / %d attack, want 2/3", s.NormalCount, s.AttackCount)
	}
	if s.AttackPercentage != 60 || s.NormalPercentage != 40 {
		t.Errorf("percentages = %v / %v", s.NormalPercentage, s.AttackPercentage)
	}
	if s.AttacksByProtocol["tcp"] != 2 || s.AttacksByProtocol["icmp"] != 1 {
		t.Errorf("attacks by protocol = %v", s.AttacksByProtocol)
	}

	alerts := readAlerts(t, opts.AlertsPath)
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	for i, a := range alerts {
		if a.Seq != uint64(i+1) || a.Label != model.LabelAttack || a.RunID != s.RunID {
			t.Errorf("alert %d = %+v", i, a)
		}
		if a.SrcIP != "10.0.0.5" || a.DstPort != 22 || a.Size != 60 {
			t.Errorf("alert %d lost event fields: %+v", i, a)
		}
	}
	if len(sink.records) != 3 || !sink.closed {
		t.Errorf("sink got %d records (closed=%v)", len(sink.records), sink.closed)
	}
}

func TestPublish_SinkFailureIsNotFatal(t *testing.T) {
	reg := prometheus.NewRegistry()
	bad := &memorySink{name: "broken", fail: true}
	good := &memorySink{name: "memory"}
	p, opts := newTestPublisher(t, Options{Sinks: []model.AlertSink{bad, good}, Metrics: metrics.New(reg)})

	if err := p.Publish(context.Background(), event("tcp"), attack); err != nil {
		t.Fatalf("sink failure must not fail Publish: %v", err)
	}
	p.Close()

	if len(good.records) != 1 {
		t.Errorf("healthy sink should still receive the alert")
	}
	if len(readAlerts(t, opts.AlertsPath)) != 1 {
		t.Errorf("primary alert log should hold the alert")
	}
}

func TestPublish_FlushEveryAndClose(t *testing.T) {
	p, opts := newTestPublisher(t, Options{FlushEvery: 10})

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), event("udp"), normal); err != nil {
			t.Fatal(err)
		}
	}
	if s := readStats(t, opts.StatsPath); s.TotalEvents != 0 {
		t.Errorf("document should not be rewritten before flush_every, got %d", s.TotalEvents)
	}
	if got := p.Latest().TotalEvents; got != 3 {
		t.Errorf("Latest() = %d, want 3", got)
	}

	p.Close()
	if s := readStats(t, opts.StatsPath); s.TotalEvents != 3 {
		t.Errorf("Close should flush, got %d", s.TotalEvents)
	}
}

func TestNew_NewRunResetsCounters(t *testing.T) {
	p, opts := newTestPublisher(t, Options{})
	p.Publish(context.Background(), event("tcp"), attack)
	first := p.RunID()
	p.Close()

	opts.Sinks = nil
	p2, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer p2.Close()

	s := readStats(t, opts.StatsPath)
	if s.RunID == first || s.TotalEvents != 0 {
		t.Fatalf("second run should start fresh, got %+v", s)
	}
	if len(readAlerts(t, opts.AlertsPath)) != 1 {
		t.Errorf("alert history of earlier runs must be kept")
	}
}

func TestPublish_UnwritableAlertLogIsFatal(t *testing.T) {
	p, opts := newTestPublisher(t, Options{})
	if err := p.Publish(context.Background(), event("udp"), normal); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	p.alerts.file.Close()

	if err := p.Publish(context.Background(), event("tcp"), attack); err == nil {
		t.Fatal("expected an error when the alert log cannot be written")
	}
	p.Close()

	s := readStats(t, opts.StatsPath)
	if s.TotalEvents != 1 || s.AttackCount != 0 || len(s.AttacksByProtocol) != 0 {
		t.Errorf("failed append must not be counted: total=%d attacks=%d by_proto=%v",
			s.TotalEvents, s.AttackCount, s.AttacksByProtocol)
	}
	if got := len(readAlerts(t, opts.AlertsPath)); got != 0 {
		t.Errorf("expected an empty alert log, got %d lines", got)
	}
}
