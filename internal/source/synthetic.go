package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/protocol"
)

func init() {
	Register(config.ModeSynthetic, func(cfg *config.IngestionConfig) (model.Source, error) {
		sc := cfg.Synthetic
		interval, err := time.ParseDuration(sc.Interval)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid synthetic interval: %v", model.ErrStartup, err)
		}
		return NewSyntheticSource(SyntheticOptions{
			AttackProbability: sc.AttackProbability,
			Interval:          interval,
			Jitter:            sc.Jitter,
			Seed:              sc.Seed,
			Limit:             sc.Limit,
		})
	})
}

// SyntheticOptions configures the generator.
type SyntheticOptions struct {
	AttackProbability float64
	Interval          time.Duration
	Jitter            float64
	// Seed 0 seeds from the clock.
	Seed int64
	// Limit 0 means no limit.
	Limit int
}

var (
	wellKnownTargets = []uint16{21, 22, 23, 25, 53, 80, 110, 139, 143, 443, 445}
	serviceTargets   = []uint16{22, 80, 443, 8080, 8443}
)

// SyntheticSource fabricates traffic when no real or recorded traffic is
// available. Every event carries model.OriginSynthetic.
type SyntheticSource struct {
	opts    SyntheticOptions
	rng     *rand.Rand
	emitted int
}

// NewSyntheticSource validates opts and creates the generator.
func NewSyntheticSource(opts SyntheticOptions) (*SyntheticSource, error) {
	if opts.AttackProbability < 0 || opts.AttackProbability > 1 {
		return nil, fmt.Errorf("%w: attack probability must be within [0,1], got %v", model.ErrStartup, opts.AttackProbability)
	}
	if opts.Interval < 0 || opts.Jitter < 0 || opts.Jitter > 1 {
		return nil, fmt.Errorf("%w: invalid interval %v or jitter %v", model.ErrStartup, opts.Interval, opts.Jitter)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Printf("SyntheticSource: generating traffic every %v with attack probability %.2f", opts.Interval, opts.AttackProbability)
	return &SyntheticSource{opts: opts, rng: rand.New(rand.NewSource(seed))}, nil
}

// Name implements model.Source.
func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// Next sleeps for the emission interval and returns a fabricated event. The
// first event is emitted immediately.
func (s *SyntheticSource) Next(ctx context.Context) (*model.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.opts.Limit > 0 && s.emitted >= s.opts.Limit {
		return nil, io.EOF
	}
	if s.emitted > 0 {
		if err := sleepCtx(ctx, s.wait()); err != nil {
			return nil, err
		}
	}
	s.emitted++

	var ev *model.RawEvent
	if s.rng.Float64() < s.opts.AttackProbability {
		ev = s.attack()
	} else {
		ev = s.normal()
	}
	now := time.Now()
	ev.Timestamp, ev.Observed = now, now
	ev.Origin = model.OriginSynthetic
	return ev, nil
}

func (s *SyntheticSource) wait() time.Duration {
	d := float64(s.opts.Interval)
	if j := s.opts.Jitter; j > 0 {
		d *= 1 - j + 2*j*s.rng.Float64()
	}
	return time.Duration(d)
}

// attack returns a SYN-only probe or an oversized ICMP/UDP datagram.
func (s *SyntheticSource) attack() *model.RawEvent {
	ev := &model.RawEvent{
		SrcIP: net.IPv4(10, 66, byte(s.rng.Intn(256)), byte(1+s.rng.Intn(254))),
		DstIP: net.IPv4(192, 168, 1, byte(1+s.rng.Intn(254))),
	}
	switch s.rng.Intn(3) {
	case 0:
		ev.Protocol = protocol.ProtoTCP
		ev.Flags = model.FlagSYN
		ev.SrcPort = s.ephemeral()
		ev.DstPort = wellKnownTargets[s.rng.Intn(len(wellKnownTargets))]
		ev.Length = 54 + s.rng.Intn(21)
	case 1:
		ev.Protocol = protocol.ProtoICMP
		ev.Length = 3001 + s.rng.Intn(6000)
	default:
		ev.Protocol = protocol.ProtoUDP
		ev.SrcPort = s.ephemeral()
		ev.DstPort = uint16(1 + s.rng.Intn(65535))
		ev.Length = 3001 + s.rng.Intn(5000)
	}
	return ev
}

// normal returns an established TCP segment or a DNS query.
func (s *SyntheticSource) normal() *model.RawEvent {
	ev := &model.RawEvent{
		SrcIP: net.IPv4(192, 168, 1, byte(1+s.rng.Intn(254))),
		DstIP: net.IPv4(172, 16, byte(s.rng.Intn(256)), byte(1+s.rng.Intn(254))),
	}
	if s.rng.Intn(4) == 0 {
		ev.Protocol = protocol.ProtoUDP
		ev.SrcPort = s.ephemeral()
		ev.DstPort = 53
		ev.Length = 60 + s.rng.Intn(453)
		return ev
	}
	ev.Protocol = protocol.ProtoTCP
	ev.Flags = model.FlagACK
	if s.rng.Intn(2) == 0 {
		ev.Flags |= model.FlagPSH
	}
	ev.SrcPort = s.ephemeral()
	ev.DstPort = serviceTargets[s.rng.Intn(len(serviceTargets))]
	ev.Length = 60 + s.rng.Intn(1441)
	return ev
}

func (s *SyntheticSource) ephemeral() uint16 {
	return uint16(49152 + s.rng.Intn(16384))
}

// Close implements model.Source.
func (s *SyntheticSource) Close() error {
	return nil
}
