package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/protocol"
	"Go2NetGuard/pkg/pcap"
)

func init() {
	Register(config.ModeReplay, func(cfg *config.IngestionConfig) (model.Source, error) {
		pacing := 1.0
		if cfg.Replay.Pacing != nil {
			pacing = *cfg.Replay.Pacing
		}
		return NewReplaySource(cfg.Replay.Path, pacing)
	})
}

// ReplaySource re-emits the packets of one or more recorded traces. The
// delay before each event is the recorded gap to the previous packet scaled
// by the pacing multiplier.
type ReplaySource struct {
	files  []string
	next   int
	reader *pcap.Reader
	pacing float64

	prev    time.Time
	skipped uint64
}

// NewReplaySource opens path, which is either a trace file or a directory
// whose .pcap/.pcapng files are replayed in lexical order. A pacing of 0
// replays as fast as possible.
func NewReplaySource(path string, pacing float64) (*ReplaySource, error) {
	if pacing < 0 {
		return nil, fmt.Errorf("%w: pacing must be >= 0, got %v", model.ErrStartup, pacing)
	}
	files, err := traceFiles(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStartup, err)
	}

	s := &ReplaySource{files: files, pacing: pacing}
	if err := s.openNext(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	log.Printf("ReplaySource: replaying %d trace file(s) from %s at pacing %.3g", len(files), path, pacing)
	return s, nil
}

func traceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access trace: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("cannot list trace directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".pcap" || ext == ".pcapng") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .pcap or .pcapng files in %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// openNext advances past the next file even when it cannot be opened.
func (s *ReplaySource) openNext() error {
	name := s.files[s.next]
	s.next++
	r, err := pcap.NewReader(name)
	if err != nil {
		return err
	}
	s.reader = r
	// Each file starts its own timeline.
	s.prev = time.Time{}
	return nil
}

// Name implements model.Source.
func (s *ReplaySource) Name() string {
	if len(s.files) == 1 {
		return "replay:" + filepath.Base(s.files[0])
	}
	return fmt.Sprintf("replay:%d files", len(s.files))
}

// Next returns the next IP packet of the trace, io.EOF once every file is
// exhausted.
func (s *ReplaySource) Next(ctx context.Context) (*model.RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.reader == nil {
			if s.next >= len(s.files) {
				return nil, io.EOF
			}
			if err := s.openNext(); err != nil {
				log.Printf("ReplaySource: skipping %s: %v", s.files[s.next-1], err)
				continue
			}
		}

		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Truncated captures are common when tcpdump is killed.
				log.Printf("ReplaySource: stopping %s early: %v", s.files[s.next-1], err)
			}
			s.reader.Close()
			s.reader = nil
			continue
		}

		ev, err := protocol.ParsePacket(data, ci, s.reader.LinkType(), model.OriginReplay)
		if err != nil {
			s.skipped++
			continue
		}

		if err := sleepCtx(ctx, s.delay(ci.Timestamp)); err != nil {
			return nil, err
		}
		ev.Observed = time.Now()
		return ev, nil
	}
}

// delay computes the scaled gap since the previously emitted packet.
func (s *ReplaySource) delay(ts time.Time) time.Duration {
	prev := s.prev
	s.prev = ts
	if prev.IsZero() || s.pacing == 0 {
		return 0
	}
	gap := ts.Sub(prev)
	if gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) * s.pacing)
}

// Skipped returns how many non-IP frames were dropped.
func (s *ReplaySource) Skipped() uint64 {
	return s.skipped
}

// Close releases the open trace file.
func (s *ReplaySource) Close() error {
	if s.reader != nil {
		err := s.reader.Close()
		s.reader = nil
		s.next = len(s.files)
		return err
	}
	return nil
}
