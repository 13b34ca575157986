package publisher

import (
	"sync"
	"time"

	"Go2NetGuard/internal/model"
)

// stats owns the counters of one run. The pipeline is the only writer; the
// mutex lets the alerter take snapshots from another goroutine.
type stats struct {
	mu sync.Mutex

	runID       string
	startedAt   time.Time
	source      string
	synthetic   bool
	modelDigest string

	total, normal, attack uint64
	byProtocol            map[string]uint64
	lastUpdated           time.Time
}

func (s *stats) record(p model.Prediction, proto string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if p.IsAttack() {
		s.attack++
		s.byProtocol[proto]++
	} else {
		s.normal++
	}
	s.lastUpdated = now
}

// snapshot builds a self-contained copy of the current state.
func (s *stats) snapshot() *model.StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProto := make(map[string]uint64, len(s.byProtocol))
	for k, v := range s.byProtocol {
		byProto[k] = v
	}
	snap := &model.StatisticsSnapshot{
		RunID:             s.runID,
		StartedAt:         s.startedAt,
		Source:            s.source,
		Synthetic:         s.synthetic,
		ModelDigest:       s.modelDigest,
		TotalEvents:       s.total,
		NormalCount:       s.normal,
		AttackCount:       s.attack,
		AttacksByProtocol: byProto,
		LastUpdated:       s.lastUpdated,
	}
	if s.total > 0 {
		snap.NormalPercentage = percentage(s.normal, s.total)
		snap.AttackPercentage = percentage(s.attack, s.total)
	}
	return snap
}

func percentage(part, total uint64) float64 {
	p := float64(part) * 100 / float64(total)
	// two decimals are enough for the dashboard
	return float64(int64(p*100+0.5)) / 100
}
