package publisher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"Go2NetGuard/internal/model"
)

// AlertLog appends AlertRecords to a JSON Lines file. Each record is written
// with a single write on an O_APPEND descriptor, so a concurrent reader sees
// either the whole line or none of it; a torn final line can only result from
// a crash and is skipped by readers.
type AlertLog struct {
	file  *os.File
	fsync bool
}

// OpenAlertLog opens path for appending, creating it and its directory if
// needed. Opening writes nothing.
func OpenAlertLog(path string, fsync bool) (*AlertLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create alert log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert log '%s': %w", path, err)
	}
	return &AlertLog{file: f, fsync: fsync}, nil
}

// Append writes rec as one line.
func (l *AlertLog) Append(rec *model.AlertRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	line = append(line, '\n')

	n, err := l.file.Write(line)
	if err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}
	if n != len(line) {
		return fmt.Errorf("short write appending alert: %d of %d bytes", n, len(line))
	}
	if l.fsync {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync alert log: %w", err)
		}
	}
	return nil
}

// Close closes the file.
func (l *AlertLog) Close() error {
	return l.file.Close()
}
