// Package query reads alerts back from the ClickHouse mirror.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const defaultLimit = 200

// ClickHouseQuerier answers address lookups against the nids_alerts table.
type ClickHouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (*ClickHouseQuerier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &ClickHouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// buildAlertsQuery selects the newest alerts touching ip across all runs.
func buildAlertsQuery(ip string, limit int) (string, []interface{}) {
	if limit <= 0 {
		limit = defaultLimit
	}

	var b strings.Builder
	b.WriteString(`
		SELECT
			Timestamp, RunID, Seq, SrcIP, SrcPort, DstIP, DstPort,
			Protocol, Size, Score, Origin
		FROM nids_alerts
		WHERE (SrcIP = ? OR DstIP = ?)`)
	args := []interface{}{ip, ip}

	b.WriteString(`
		ORDER BY Timestamp DESC, Seq DESC
		LIMIT ?`)
	args = append(args, limit)
	return b.String(), args
}

// QueryByIP returns the newest alerts whose source or destination is ip.
func (q *ClickHouseQuerier) QueryByIP(ctx context.Context, ip string, limit int) ([]model.AlertRecord, error) {
	query, args := buildAlertsQuery(ip, limit)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	out := make([]model.AlertRecord, 0, 64)
	for rows.Next() {
		var (
			r    model.AlertRecord
			ts   time.Time
			size int64
		)
		if err := rows.Scan(&ts, &r.RunID, &r.Seq, &r.SrcIP, &r.SrcPort, &r.DstIP, &r.DstPort,
			&r.Protocol, &size, &r.Score, &r.Origin); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		r.Timestamp = ts.UTC()
		r.Size = int(size)
		r.Label = model.LabelAttack
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the connection.
func (q *ClickHouseQuerier) Close() error {
	return q.conn.Close()
}
