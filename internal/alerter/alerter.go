package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

// Metrics a rule may watch.
const (
	MetricAttackCount      = "attack_count"
	MetricAttackPercentage = "attack_percentage"
	MetricTotalEvents      = "total_events"
)

// SnapshotProvider exposes the current statistics of the running pipeline.
type SnapshotProvider interface {
	Latest() *model.StatisticsSnapshot
}

// Alerter evaluates the live statistics against threshold rules and mails a
// summary when a rule starts firing. A rule that keeps firing is reported
// once until it clears.
type Alerter struct {
	stats         SnapshotProvider
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup

	firing map[string]bool
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, stats SnapshotProvider, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be positive")
	}
	for _, r := range cfg.Rules {
		switch r.Metric {
		case MetricAttackCount, MetricAttackPercentage, MetricTotalEvents:
		default:
			return nil, fmt.Errorf("rule '%s': unknown metric '%s'", r.Name, r.Metric)
		}
		if !validOperator(r.Operator) {
			return nil, fmt.Errorf("rule '%s': unknown operator '%s'", r.Name, r.Operator)
		}
	}

	return &Alerter{
		stats:         stats,
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
		firing:        make(map[string]bool),
	}, nil
}

// Start runs the periodic evaluation in a new goroutine.
func (a *Alerter) Start() {
	log.Println("Alerter started")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.evaluate()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop ends the evaluation loop and runs one final check.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.evaluate()
}

// Check evaluates every rule once and returns the messages of the rules that
// started firing.
func (a *Alerter) Check() []string {
	snap := a.stats.Latest()
	var messages []string
	for _, rule := range a.rules {
		value := metricValue(snap, rule.Metric)
		triggered := check(value, rule.Threshold, rule.Operator)
		wasFiring := a.firing[rule.Name]
		a.firing[rule.Name] = triggered
		if !triggered || wasFiring {
			continue
		}

		messages = append(messages, fmt.Sprintf("<h3>Alert: %s</h3>"+
			"<ul>"+
			"<li><b>Run:</b> <code>%s</code> (%s)</li>"+
			"<li><b>Metric:</b> <code>%s</code></li>"+
			"<li><b>Condition:</b> <code>%s %.2f</code></li>"+
			"<li><b>Observed Value:</b> <code>%.2f</code></li>"+
			"<li><b>Totals:</b> %d events, %d attacks</li>"+
			"</ul>",
			rule.Name, snap.RunID, snap.Source, rule.Metric, rule.Operator, rule.Threshold, value,
			snap.TotalEvents, snap.AttackCount))
	}
	return messages
}

func (a *Alerter) evaluate() {
	messages := a.Check()
	if len(messages) == 0 {
		return
	}
	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(messages))

	if a.notifier == nil {
		return
	}
	body := "<h1>Go2NetGuard Alert Summary</h1>" +
		"<p>The following rules were triggered during the last check:</p><hr>" +
		strings.Join(messages, "<hr>")
	subject := fmt.Sprintf("Go2NetGuard Alert Summary (%d Triggered)", len(messages))
	if err := a.notifier.Send(subject, body); err != nil {
		log.Printf("ERROR: Failed to send alert notification: %v", err)
	} else {
		log.Printf("INFO: Alert notification sent successfully.")
	}
}

func metricValue(s *model.StatisticsSnapshot, metric string) float64 {
	switch metric {
	case MetricAttackCount:
		return float64(s.AttackCount)
	case MetricAttackPercentage:
		return s.AttackPercentage
	case MetricTotalEvents:
		return float64(s.TotalEvents)
	}
	return 0
}

func validOperator(op string) bool {
	switch op {
	case ">", "<", "=", ">=", "<=":
		return true
	}
	return false
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}
