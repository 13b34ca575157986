// Package reader parses the artifacts published by the engine. It never
// writes and never locks; a missing or partially written artifact is treated
// as "nothing yet", not as an error.
package reader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"Go2NetGuard/internal/model"
)

// ErrNotPublished means the engine has not written the statistics document
// yet.
var ErrNotPublished = errors.New("statistics not published yet")

// ReadStats loads the statistics document at path.
func ReadStats(path string) (*model.StatisticsSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotPublished
		}
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNotPublished
	}

	var s model.StatisticsSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse statistics: %w", err)
	}
	if s.AttacksByProtocol == nil {
		s.AttacksByProtocol = map[string]uint64{}
	}
	return &s, nil
}

const tailChunk = 64 * 1024

// ReadAlerts returns up to limit alerts, newest first. A missing log yields no
// alerts. An unterminated final line is still being written (or was torn by
// a crash) and is skipped, as are lines that do not parse.
func ReadAlerts(path string, limit int) ([]model.AlertRecord, error) {
	out := []model.AlertRecord{}
	if limit <= 0 {
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to open alert log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat alert log: %w", err)
	}

	// Walk backwards from the end one chunk at a time. rest holds the bytes
	// of a line that started before the current chunk.
	end := info.Size()
	var rest []byte
	first := true
	for end > 0 && len(out) < limit {
		start := end - tailChunk
		if start < 0 {
			start = 0
		}
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read alert log: %w", err)
		}
		buf = append(buf, rest...)

		if first {
			first = false
			if i := bytes.LastIndexByte(buf, '\n'); i < len(buf)-1 {
				buf = buf[:i+1]
			}
		}

		lines := bytes.Split(buf, []byte{'\n'})
		// lines[0] may be incomplete unless we reached the start of the file.
		lo := 1
		if start == 0 {
			lo = 0
		}
		for i := len(lines) - 1; i >= lo && len(out) < limit; i-- {
			if rec, ok := parseLine(lines[i]); ok {
				out = append(out, rec)
			}
		}
		rest = append([]byte(nil), lines[0]...)
		end = start
	}
	return out, nil
}

func parseLine(line []byte) (model.AlertRecord, bool) {
	var rec model.AlertRecord
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return rec, false
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, false
	}
	return rec, true
}
