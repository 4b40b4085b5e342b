package model

import "context"

// Writer defines a generic interface for handing a finished report to an output.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write persists or publishes the report.
	Write(ctx context.Context, report *Report) error

	// Close releases any connection held by the writer.
	Close() error
}
