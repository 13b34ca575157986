package model

import (
	"net"
	"time"
)

// Origin names the ingestion backend that produced an event.
const (
	OriginLive      = "live"
	OriginReplay    = "replay"
	OriginSynthetic = "synthetic"
)

// TCP flag bits carried in RawEvent.Flags.
const (
	FlagFIN uint8 = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

// RawEvent is one captured, replayed or synthesized network occurrence.
// It is created by a Source and consumed once by the feature extractor.
type RawEvent struct {
	// Timestamp is the wall-clock time recorded with the packet.
	Timestamp time.Time
	// Observed is taken with time.Now() when the event entered the pipeline,
	// so it carries a monotonic clock reading.
	Observed time.Time
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol string
	Length   int
	Flags    uint8
	Origin   string
}

// HasFlag reports whether all bits in f are set.
func (e *RawEvent) HasFlag(f uint8) bool {
	return e.Flags&f == f
}

// FeatureVector is the fixed-width numeric input of the classifier.
type FeatureVector []float64

// Label is the binary classification outcome.
type Label string

const (
	LabelNormal Label = "Normal"
	LabelAttack Label = "Attack"
)

// Prediction is the classifier output for a single FeatureVector.
type Prediction struct {
	Label Label
	// Score is the mean attack probability across the ensemble.
	Score float64
}

// IsAttack reports whether the prediction should produce an AlertRecord.
func (p Prediction) IsAttack() bool {
	return p.Label == LabelAttack
}

// AlertRecord is the durable record of one Attack prediction. The field order
// is the on-disk key order and must not change.
type AlertRecord struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	SrcIP     string    `json:"src_ip"`
	SrcPort   uint16    `json:"src_port"`
	DstIP     string    `json:"dst_ip"`
	DstPort   uint16    `json:"dst_port"`
	Protocol  string    `json:"protocol"`
	Size      int       `json:"size"`
	Label     Label     `json:"label"`
	Score     float64   `json:"score"`
	Origin    string    `json:"origin"`
	RunID     string    `json:"run_id"`
}

// StatisticsSnapshot is the rolling aggregate published after every event.
type StatisticsSnapshot struct {
	RunID             string            `json:"run_id"`
	StartedAt         time.Time         `json:"started_at"`
	Source            string            `json:"source"`
	Synthetic         bool              `json:"synthetic"`
	ModelDigest       string            `json:"model_digest,omitempty"`
	TotalEvents       uint64            `json:"total_events"`
	NormalCount       uint64            `json:"normal_count"`
	AttackCount       uint64            `json:"attack_count"`
	NormalPercentage  float64           `json:"normal_percentage"`
	AttackPercentage  float64           `json:"attack_percentage"`
	AttacksByProtocol map[string]uint64 `json:"attacks_by_protocol"`
	LastUpdated       time.Time         `json:"last_updated"`
}

// Consistent reports whether the counters of the snapshot agree.
func (s *StatisticsSnapshot) Consistent() bool {
	return s.NormalCount+s.AttackCount == s.TotalEvents
}
