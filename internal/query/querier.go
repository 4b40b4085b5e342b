package query

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/storage"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Querier defines the interface for reading stored counts.
type Querier interface {
	LatestTagCounts(ctx context.Context) ([]storage.TagRow, error)
	LatestPortProtocolCounts(ctx context.Context) ([]storage.PortProtocolRow, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := storage.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

const latestTagCountsQuery = `
SELECT Tag, Count
FROM tag_counts
WHERE Timestamp = (SELECT max(Timestamp) FROM tag_counts)
ORDER BY Tag`

const latestPortProtocolCountsQuery = `
SELECT Port, Protocol, Count
FROM port_protocol_counts
WHERE Timestamp = (SELECT max(Timestamp) FROM port_protocol_counts)
ORDER BY Port, Protocol`

// LatestTagCounts returns the tag counts of the most recent run.
func (q *clickhouseQuerier) LatestTagCounts(ctx context.Context) ([]storage.TagRow, error) {
	rows, err := q.conn.Query(ctx, latestTagCountsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag counts: %w", err)
	}
	defer rows.Close()

	var out []storage.TagRow
	for rows.Next() {
		var row storage.TagRow
		if err := rows.Scan(&row.Tag, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LatestPortProtocolCounts returns the port/protocol counts of the most recent run.
func (q *clickhouseQuerier) LatestPortProtocolCounts(ctx context.Context) ([]storage.PortProtocolRow, error) {
	rows, err := q.conn.Query(ctx, latestPortProtocolCountsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query port/protocol counts: %w", err)
	}
	defer rows.Close()

	var out []storage.PortProtocolRow
	for rows.Next() {
		var row storage.PortProtocolRow
		if err := rows.Scan(&row.Port, &row.Protocol, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan port/protocol count: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
