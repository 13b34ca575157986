package sink

import (
	"context"
	"log"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes every alert to a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the configured server.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("nids-engine"))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSSink{nc: nc, subject: cfg.Subject}, nil
}

// Name implements model.AlertSink.
func (s *NATSSink) Name() string {
	return "nats"
}

// WriteAlert serializes rec to protobuf and publishes it.
func (s *NATSSink) WriteAlert(_ context.Context, rec *model.AlertRecord) error {
	data, err := EncodeAlert(rec)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	err := s.nc.Drain()
	log.Println("NATS connection drained and closed.")
	return err
}
