package manager

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/aggregator"
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/flowlog"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// line is one flow log line with its 1-based position in the input.
type line struct {
	no        uint64
	text      string
	oversized bool
}

// Manager runs flow log lines through the classifier into aggregators and hands the result to writers.
type Manager struct {
	table   classifier.Lookup
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	// Worker pool used when numWorkers > 1
	numWorkers  int
	channelSize int
}

// NewManager creates a new Manager. A nil metrics gets a private, unexported registry.
func NewManager(cfg *config.Config, table classifier.Lookup, log logrus.FieldLogger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		table:       table,
		log:         log,
		metrics:     m,
		numWorkers:  cfg.Engine.NumWorkers,
		channelSize: cfg.Engine.SizeOfLineChannel,
	}
}

// Process reads r line by line and returns the aggregated report.
// With a single worker lines are handled strictly in order; otherwise each worker
// fills its own aggregator and the partial counts are summed at the end.
func (m *Manager) Process(ctx context.Context, r io.Reader) (*model.Report, error) {
	var (
		agg            *aggregator.Aggregator
		lines, skipped uint64
		err            error
	)
	if m.numWorkers <= 1 {
		agg, lines, skipped, err = m.processSequential(ctx, r)
	} else {
		agg, lines, skipped, err = m.processParallel(ctx, r)
	}
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		Counts:    agg.Counts(),
		Lines:     lines,
		Skipped:   skipped,
		Timestamp: time.Now().Format(model.TimestampLayout),
	}
	m.logSummary(report)
	return report, nil
}

func (m *Manager) processSequential(ctx context.Context, r io.Reader) (*aggregator.Aggregator, uint64, uint64, error) {
	agg := aggregator.New()
	reader := flowlog.NewReader(r)

	var lines, skipped uint64
	for reader.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		lines++
		if !m.handle(line{no: lines, text: reader.Text(), oversized: reader.Oversized()}, agg) {
			skipped++
		}
	}
	if err := reader.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read flow log: %w", err)
	}
	return agg, lines, skipped, nil
}

func (m *Manager) processParallel(ctx context.Context, r io.Reader) (*aggregator.Aggregator, uint64, uint64, error) {
	lineChannel := make(chan line, m.channelSize)
	partials := make([]*aggregator.Aggregator, m.numWorkers)

	var (
		skipped  atomic.Uint64
		workerWg sync.WaitGroup
	)
	workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		partials[i] = aggregator.New()
		go m.worker(lineChannel, partials[i], &skipped, &workerWg)
	}
	m.log.WithField("workers", m.numWorkers).Debug("Worker pool started")

	reader := flowlog.NewReader(r)
	var lines uint64
	var readErr error
feed:
	for reader.Scan() {
		lines++
		select {
		case lineChannel <- line{no: lines, text: reader.Text(), oversized: reader.Oversized()}:
		case <-ctx.Done():
			readErr = ctx.Err()
			break feed
		}
	}
	if readErr == nil {
		if err := reader.Err(); err != nil {
			readErr = fmt.Errorf("failed to read flow log: %w", err)
		}
	}

	// Stop accepting new lines and wait for buffered ones.
	close(lineChannel)
	workerWg.Wait()

	if readErr != nil {
		return nil, 0, 0, readErr
	}

	total := aggregator.New()
	for _, p := range partials {
		total.Merge(p)
	}
	return total, lines, skipped.Load(), nil
}

func (m *Manager) worker(in <-chan line, agg *aggregator.Aggregator, skipped *atomic.Uint64, wg *sync.WaitGroup) {
	defer wg.Done()
	for l := range in {
		if !m.handle(l, agg) {
			skipped.Add(1)
		}
	}
}

// handle classifies one line into agg. It reports false when the line was skipped.
func (m *Manager) handle(l line, agg *aggregator.Aggregator) bool {
	m.metrics.LinesRead.Inc()

	if l.oversized {
		m.metrics.LinesSkipped.Inc()
		m.log.WithFields(logrus.Fields{"line": l.no, "limit": flowlog.MaxLineSize}).Warn("Skipping oversized line")
		return false
	}

	res, ok := classifier.Classify(l.text, m.table)
	if !ok {
		m.metrics.LinesSkipped.Inc()
		m.log.WithFields(logrus.Fields{"line": l.no, "content": l.text}).Debug("Skipping malformed line")
		return false
	}

	m.log.WithFields(logrus.Fields{
		"line":     l.no,
		"port":     res.Key.Port,
		"protocol": res.Key.Protocol,
		"tag":      res.Tag,
	}).Debug("Log entry classified")

	agg.Add(res)
	m.metrics.ObserveResult(res)
	return true
}

func (m *Manager) logSummary(r *model.Report) {
	m.log.WithFields(logrus.Fields{
		"lines":          r.Lines,
		"skipped":        r.Skipped,
		"tags":           len(r.Tags),
		"port_protocols": len(r.PortProtocols),
	}).Info("Flow logs parsed successfully")

	tags := make([]string, 0, len(r.Tags))
	for tag := range r.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		m.log.WithFields(logrus.Fields{"tag": tag, "count": r.Tags[tag]}).Debug("Final tag count")
	}
}

// Publish hands the report to every writer concurrently and waits for all of them.
// Errors from individual writers are joined; one failing writer does not stop the others.
func (m *Manager) Publish(ctx context.Context, report *model.Report, writers []model.Writer) error {
	m.log.WithField("writers", len(writers)).Info("Publishing report")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(len(writers))
	for _, w := range writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(ctx, report); err != nil {
				m.log.WithError(err).WithField("writer", w.Name()).Error("Error writing report")
				mu.Lock()
				errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return errors.Join(errs...)
}
