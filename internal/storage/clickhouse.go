package storage

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter(config.WriterClickHouse, func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, log)
	})
}

const createTagCountsStatement = `
CREATE TABLE IF NOT EXISTS tag_counts (
    Timestamp DateTime64(3),
    Tag       String,
    Count     UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Tag);
`

const createPortProtocolCountsStatement = `
CREATE TABLE IF NOT EXISTS port_protocol_counts (
    Timestamp DateTime64(3),
    Port      String,
    Protocol  String,
    Count     UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Port, Protocol);
`

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
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

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
// Every report becomes one batch per table, stamped with the report timestamp.
type ClickHouseWriter struct {
	conn driver.Conn
	log  logrus.FieldLogger
}

// NewClickHouseWriter connects to ClickHouse and ensures both count tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, log logrus.FieldLogger) (*ClickHouseWriter, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createTagCountsStatement, createPortProtocolCountsStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist")

	return &ClickHouseWriter{conn: conn, log: log}, nil
}

func (w *ClickHouseWriter) Name() string {
	return config.WriterClickHouse
}

// Write inserts the report's counts into tag_counts and port_protocol_counts.
func (w *ClickHouseWriter) Write(ctx context.Context, r *model.Report) error {
	ts := reportTime(r.Timestamp)

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO tag_counts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range tagRows(r.Counts) {
		if err := batch.Append(ts, row.Tag, row.Count); err != nil {
			return fmt.Errorf("failed to append tag count to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	batch, err = w.conn.PrepareBatch(ctx, "INSERT INTO port_protocol_counts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	rows := portProtocolRows(r.Counts)
	for _, row := range rows {
		if err := batch.Append(ts, row.Port, row.Protocol, row.Count); err != nil {
			return fmt.Errorf("failed to append port/protocol count to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"tags":           len(r.Tags),
		"port_protocols": len(rows),
	}).Info("Wrote counts to ClickHouse")
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// TagRow is one row of the tag_counts table.
type TagRow struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
}

// PortProtocolRow is one row of the port_protocol_counts table.
type PortProtocolRow struct {
	Port     string `json:"port"`
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

func tagRows(c model.Counts) []TagRow {
	rows := make([]TagRow, 0, len(c.Tags))
	for tag, n := range c.Tags {
		rows = append(rows, TagRow{Tag: tag, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tag < rows[j].Tag })
	return rows
}

func portProtocolRows(c model.Counts) []PortProtocolRow {
	rows := make([]PortProtocolRow, 0, len(c.PortProtocols))
	for key, n := range c.PortProtocols {
		rows = append(rows, PortProtocolRow{Port: key.Port, Protocol: key.Protocol, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Port != rows[j].Port {
			return rows[i].Port < rows[j].Port
		}
		return rows[i].Protocol < rows[j].Protocol
	})
	return rows
}

// timestampParseLayout accepts model.TimestampLayout as well as timestamps without milliseconds.
const timestampParseLayout = "2006-01-02_15-04-05"

// reportTime parses a report timestamp, falling back to now for reports built without one.
func reportTime(timestamp string) time.Time {
	ts, err := time.ParseInLocation(timestampParseLayout, timestamp, time.Local)
	if err != nil {
		return time.Now()
	}
	return ts
}
