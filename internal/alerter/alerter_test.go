package alerter

import (
	"strings"
	"testing"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

type fixedStats struct{ snap model.StatisticsSnapshot }

func (f *fixedStats) Latest() *model.StatisticsSnapshot {
	s := f.snap
	return &s
}

type recordingNotifier struct {
	subjects []string
	bodies   []string
}

func (n *recordingNotifier) Send(subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func newTestAlerter(t *testing.T, stats SnapshotProvider, n model.Notifier, rules ...config.AlerterRule) *Alerter {
	t.Helper()
	a, err := NewAlerter(&config.AlerterConfig{Enabled: true, CheckInterval: "1h", Rules: rules}, stats, n)
	if err != nil {
		t.Fatalf("NewAlerter() error = %v", err)
	}
	return a
}

func TestCheck_FiresOnceUntilCleared(t *testing.T) {
	stats := &fixedStats{snap: model.StatisticsSnapshot{TotalEvents: 100, AttackCount: 10, AttackPercentage: 10}}
	a := newTestAlerter(t, stats, nil,
		config.AlerterRule{Name: "attack-share", Metric: MetricAttackPercentage, Operator: ">=", Threshold: 25},
		config.AlerterRule{Name: "volume", Metric: MetricTotalEvents, Operator: ">", Threshold: 50},
	)

	msgs := a.Check()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "volume") {
		t.Fatalf("first check = %v, want only the volume rule", msgs)
	}
	if msgs := a.Check(); len(msgs) != 0 {
		t.Fatalf("a rule that keeps firing should not be reported again, got %v", msgs)
	}

	stats.snap.AttackPercentage = 30
	if msgs := a.Check(); len(msgs) != 1 || !strings.Contains(msgs[0], "attack-share") {
		t.Fatalf("attack-share should start firing, got %v", msgs)
	}

	stats.snap.AttackPercentage = 5
	a.Check()
	stats.snap.AttackPercentage = 40
	if msgs := a.Check(); len(msgs) != 1 {
		t.Fatalf("a cleared rule should fire again, got %v", msgs)
	}
}

func TestStop_SendsSummary(t *testing.T) {
	n := &recordingNotifier{}
	stats := &fixedStats{snap: model.StatisticsSnapshot{AttackCount: 7}}
	a := newTestAlerter(t, stats, n, config.AlerterRule{Name: "any-attack", Metric: MetricAttackCount, Operator: ">", Threshold: 0})

	a.Start()
	a.Stop()

	if len(n.subjects) != 1 || !strings.Contains(n.subjects[0], "1 Triggered") {
		t.Fatalf("subjects = %v", n.subjects)
	}
	if !strings.Contains(n.bodies[0], "any-attack") {
		t.Errorf("body does not name the rule: %s", n.bodies[0])
	}
}

func TestNewAlerter_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.AlerterConfig
	}{
		{"bad interval", config.AlerterConfig{CheckInterval: "soon"}},
		{"unknown metric", config.AlerterConfig{CheckInterval: "1m", Rules: []config.AlerterRule{{Name: "x", Metric: "total_flows", Operator: ">"}}}},
		{"unknown operator", config.AlerterConfig{CheckInterval: "1m", Rules: []config.AlerterRule{{Name: "x", Metric: MetricAttackCount, Operator: "!="}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewAlerter(&tc.cfg, &fixedStats{}, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCheckOperators(t *testing.T) {
	testCases := []struct {
		value, threshold float64
		op               string
		want             bool
	}{
		{5, 3, ">", true},
		{3, 3, ">", false},
		{3, 3, ">=", true},
		{2, 3, "<", true},
		{3, 3, "<=", true},
		{3, 3, "=", true},
		{3, 3, "!", false},
	}
	for _, tc := range testCases {
		if got := check(tc.value, tc.threshold, tc.op); got != tc.want {
			t.Errorf("check(%v %s %v) = %v, want %v", tc.value, tc.op, tc.threshold, got, tc.want)
		}
	}
}
