// Package pipeline runs the sequential classification loop: each event is
// extracted, encoded, classified and published before the next one is pulled
// from the source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"Go2NetGuard/internal/features"
	"Go2NetGuard/internal/metrics"
	"Go2NetGuard/internal/model"
)

// Classifier is the inference engine as seen by the loop.
type Classifier interface {
	Predict(v model.FeatureVector) (model.Prediction, error)
	CheckShape(width int, names []string) error
}

// Publisher receives every classified event.
type Publisher interface {
	Publish(ctx context.Context, ev *model.RawEvent, pred model.Prediction) error
	Latest() *model.StatisticsSnapshot
	Close() error
}

// Options tunes logging and instrumentation.
type Options struct {
	// LogEvery is the number of events between progress lines; values <= 0
	// disable them.
	LogEvery int
	Metrics  *metrics.Metrics
}

// Pipeline owns the source and the publisher for the duration of Run.
type Pipeline struct {
	src       model.Source
	extractor *features.Extractor
	clf       Classifier
	pub       Publisher
	opts      Options

	processed uint64
	protocols map[string]uint64
	talkers   map[string]uint64
}

// New checks that the classifier was trained on the extractor's vector shape.
// A mismatch is a startup failure.
func New(src model.Source, x *features.Extractor, clf Classifier, pub Publisher, opts Options) (*Pipeline, error) {
	if err := clf.CheckShape(x.Width(), x.Names()); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	return &Pipeline{
		src:       src,
		extractor: x,
		clf:       clf,
		pub:       pub,
		opts:      opts,
		protocols: make(map[string]uint64),
		talkers:   make(map[string]uint64),
	}, nil
}

// Processed returns the number of events published so far.
func (p *Pipeline) Processed() uint64 {
	return p.processed
}

// Run processes events until ctx is cancelled, the source is exhausted or a
// fatal error occurs. Cancellation and exhaustion return nil. The source and
// the publisher are always closed, which flushes the statistics.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := p.src.Close(); cerr != nil {
			log.Printf("Pipeline: failed to close source: %v", cerr)
		}
		if cerr := p.pub.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close publisher: %w", cerr)
		}
		s := p.pub.Latest()
		log.Printf("Pipeline stopped after %d events | Normal: %d | Attacks: %d", s.TotalEvents, s.NormalCount, s.AttackCount)
	}()

	log.Printf("Pipeline started on source %s", p.src.Name())
	for {
		if ctx.Err() != nil {
			log.Println("Pipeline: stop requested")
			return nil
		}

		ev, err := p.src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Printf("Pipeline: source %s exhausted", p.src.Name())
				return nil
			case ctx.Err() != nil:
				log.Println("Pipeline: stop requested")
				return nil
			default:
				return fmt.Errorf("ingestion failed: %w", err)
			}
		}

		if err := p.process(ctx, ev); err != nil {
			return err
		}
	}
}

func (p *Pipeline) process(ctx context.Context, ev *model.RawEvent) error {
	vec := p.extractor.Extract(ev)
	if vec[features.IdxProtocol] == features.UnknownCode {
		p.opts.Metrics.IncUnknownProtocol()
	}

	pred, err := p.clf.Predict(vec)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	if err := p.pub.Publish(ctx, ev, pred); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	p.processed++
	p.protocols[strings.ToLower(ev.Protocol)]++
	if ev.SrcIP != nil {
		p.talkers[ev.SrcIP.String()]++
	}
	if p.opts.LogEvery > 0 && p.processed%uint64(p.opts.LogEvery) == 0 {
		p.logProgress()
	}
	return nil
}

// logProgress reports the totals and the busiest protocols and sources since
// the previous progress line.
func (p *Pipeline) logProgress() {
	s := p.pub.Latest()
	log.Printf("Processed %d events | Normal: %d | Attacks: %d | Top protocols: %s | Top sources: %s",
		s.TotalEvents, s.NormalCount, s.AttackCount, top(p.protocols, 3), top(p.talkers, 3))
	p.protocols = make(map[string]uint64)
	p.talkers = make(map[string]uint64)
}

func top(counts map[string]uint64, n int) string {
	type kv struct {
		k string
		v uint64
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	parts := make([]string, len(all))
	for i, e := range all {
		parts[i] = fmt.Sprintf("%s=%d", e.k, e.v)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
