package sink

import (
	"log"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"

	"github.com/nats-io/nats.go"
)

// AlertHandler processes an alert received from NATS.
type AlertHandler func(rec *model.AlertRecord)

// Subscriber receives the alerts published by NATSSink.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the configured server.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("nids-client"))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the alert subject and invokes handler per message.
func (s *Subscriber) Start(handler AlertHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		rec, err := DecodeAlert(msg.Data)
		if err != nil {
			log.Printf("Error decoding alert: %v", err)
			return
		}
		handler(rec)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for alerts...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
