package probe

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter(config.WriterNATS, func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		return NewPublisher(cfg.Probe, log)
	})
}

// flushTimeout bounds the wait for the server to acknowledge a published report.
const flushTimeout = 5 * time.Second

// Publisher publishes finished reports to a NATS subject.
// It implements the model.Writer interface.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     logrus.FieldLogger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, log logrus.FieldLogger) (*Publisher, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats publisher requires a subject")
	}
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.WithField("url", cfg.NATSURL).Info("Connected to NATS server")
	return &Publisher{nc: nc, subject: cfg.Subject, log: log}, nil
}

func (p *Publisher) Name() string {
	return config.WriterNATS
}

// Write serializes the report to Protobuf, publishes it and waits for the server to acknowledge the flush.
func (p *Publisher) Write(ctx context.Context, r *model.Report) error {
	data, err := Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.nc.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	p.log.WithFields(logrus.Fields{"subject": p.subject, "bytes": len(data)}).Info("Published report")
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.log.Info("NATS connection drained and closed")
	return err
}
