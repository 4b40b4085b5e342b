package probe

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// ReportHandler is a function that processes a received report.
type ReportHandler func(r *model.Report)

// Subscriber is responsible for subscribing to a NATS subject and decoding reports.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	log     logrus.FieldLogger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig, log logrus.FieldLogger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.WithField("url", cfg.NATSURL).Info("Connected to NATS server")
	return &Subscriber{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Start subscribes to the configured subject and hands every decoded report to handler.
// Messages that fail to decode are logged and dropped.
func (s *Subscriber) Start(handler ReportHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		r, err := Unmarshal(msg.Data)
		if err != nil {
			s.log.WithError(err).Warn("Error decoding report")
			return
		}
		handler(r)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	s.log.WithField("subject", s.subject).Info("Subscribed, waiting for reports")
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.log.Info("NATS connection closed")
	}
}
