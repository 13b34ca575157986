// Package sink holds the optional mirrors that receive every AlertRecord
// after it has been appended to the primary alert log.
package sink

import (
	"log"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

// FromConfig opens every enabled sink. A sink that cannot be opened is logged
// and left out; the alert log remains the source of truth.
func FromConfig(cfg config.SinksConfig) []model.AlertSink {
	var sinks []model.AlertSink

	if cfg.NATS.Enabled {
		if s, err := NewNATSSink(cfg.NATS); err != nil {
			log.Printf("Warning: NATS sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.ClickHouse.Enabled {
		if s, err := NewClickHouseSink(cfg.ClickHouse); err != nil {
			log.Printf("Warning: ClickHouse sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.SQLite.Enabled {
		if s, err := OpenSQLite(cfg.SQLite.Path); err != nil {
			log.Printf("Warning: SQLite sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks
}
