package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2NetGuard/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores alerts in a local SQLite database so they can be queried
// by address. The same type is opened read-side by nids-api.
type SQLiteSink struct {
	db  *sql.DB
	ins *sql.Stmt
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) init() error {
	ddl := `
CREATE TABLE IF NOT EXISTS alerts (
	run_id    TEXT,
	seq       INTEGER,
	timestamp TIMESTAMP,
	src_ip    TEXT,
	src_port  INTEGER,
	dst_ip    TEXT,
	dst_port  INTEGER,
	protocol  TEXT,
	size      INTEGER,
	label     TEXT,
	score     REAL,
	origin    TEXT
);
CREATE INDEX IF NOT EXISTS idx_alerts_src_ip ON alerts(src_ip);
CREATE INDEX IF NOT EXISTS idx_alerts_dst_ip ON alerts(dst_ip);
CREATE INDEX IF NOT EXISTS idx_alerts_ts     ON alerts(timestamp);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}
	stmt, err := s.db.Prepare(`
INSERT INTO alerts (
	run_id, seq, timestamp, src_ip, src_port, dst_ip, dst_port,
	protocol, size, label, score, origin
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	s.ins = stmt
	return nil
}

// Name implements model.AlertSink.
func (s *SQLiteSink) Name() string {
	return "sqlite"
}

// WriteAlert inserts rec.
func (s *SQLiteSink) WriteAlert(ctx context.Context, rec *model.AlertRecord) error {
	if rec == nil {
		return fmt.Errorf("alert is nil")
	}
	_, err := s.ins.ExecContext(ctx,
		rec.RunID,
		int64(rec.Seq),
		rec.Timestamp.UTC(),
		rec.SrcIP,
		rec.SrcPort,
		rec.DstIP,
		rec.DstPort,
		rec.Protocol,
		rec.Size,
		string(rec.Label),
		rec.Score,
		rec.Origin,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// QueryByIP returns the newest alerts whose source or destination is ip.
func (s *SQLiteSink) QueryByIP(ctx context.Context, ip string, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	run_id, seq, timestamp, src_ip, src_port, dst_ip, dst_port,
	protocol, size, label, score, origin
FROM alerts
WHERE src_ip = ? OR dst_ip = ?
ORDER BY timestamp DESC, seq DESC
LIMIT ?;
`, ip, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make([]model.AlertRecord, 0, 64)
	for rows.Next() {
		var (
			r     model.AlertRecord
			seq   int64
			ts    time.Time
			label string
		)
		if err := rows.Scan(
			&r.RunID,
			&seq,
			&ts,
			&r.SrcIP,
			&r.SrcPort,
			&r.DstIP,
			&r.DstPort,
			&r.Protocol,
			&r.Size,
			&label,
			&r.Score,
			&r.Origin,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Seq = uint64(seq)
		r.Timestamp = ts
		r.Label = model.Label(label)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if s.ins != nil {
		s.ins.Close()
	}
	return s.db.Close()
}
