package model

import "context"

// Source produces a lazy sequence of RawEvents. Next blocks until an event is
// available, the context is cancelled, or the source is exhausted (io.EOF).
type Source interface {
	Name() string
	Next(ctx context.Context) (*RawEvent, error)
	Close() error
}

// AlertSink mirrors published AlertRecords to a secondary store or transport.
type AlertSink interface {
	WriteAlert(ctx context.Context, rec *AlertRecord) error
	Name() string
	Close() error
}

// Notifier delivers operator notifications such as alerter summaries.
type Notifier interface {
	Send(subject, body string) error
}
