package snapshot

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	countsFile  = "counts.gob"
	summaryFile = "summary.json"
)

func init() {
	factory.RegisterWriter(config.WriterSnapshot, func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		if def.Snapshot.RootPath == "" {
			return nil, fmt.Errorf("snapshot writer requires a root_path")
		}
		return NewWriter(def.Snapshot.RootPath, log), nil
	})
}

// SummaryData holds the metadata for a snapshot.
type SummaryData struct {
	Timestamp     string `json:"timestamp"`
	Lines         uint64 `json:"lines"`
	Skipped       uint64 `json:"skipped"`
	Tags          int    `json:"tags"`
	PortProtocols int    `json:"port_protocols"`
	WrittenAt     string `json:"written_at"`
}

// PortProtocolCount is one entry of the port/protocol mapping as stored on disk.
type PortProtocolCount struct {
	Port     string
	Protocol string
	Count    uint64
}

// payload is the gob encoded body of a snapshot.
type payload struct {
	Timestamp     string
	Lines         uint64
	Skipped       uint64
	Tags          map[string]uint64
	PortProtocols []PortProtocolCount
}

// Writer handles writing report snapshots to disk.
type Writer struct {
	rootPath string
	log      logrus.FieldLogger
}

// NewWriter creates a new snapshot writer rooted at rootPath.
func NewWriter(rootPath string, log logrus.FieldLogger) *Writer {
	return &Writer{rootPath: rootPath, log: log}
}

func (w *Writer) Name() string {
	return "snapshot:" + w.rootPath
}

// Write serializes the report into a directory named after its timestamp.
func (w *Writer) Write(ctx context.Context, r *model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timestamp := r.Timestamp
	if timestamp == "" {
		timestamp = time.Now().Format(model.TimestampLayout)
	}
	snapshotDir := filepath.Join(w.rootPath, timestamp)
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	p := toPayload(r, timestamp)
	if err := writeFile(filepath.Join(snapshotDir, countsFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(p)
	}); err != nil {
		return fmt.Errorf("failed to encode counts to gob: %w", err)
	}

	summary := SummaryData{
		Timestamp:     timestamp,
		Lines:         r.Lines,
		Skipped:       r.Skipped,
		Tags:          len(p.Tags),
		PortProtocols: len(p.PortProtocols),
		WrittenAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeFile(filepath.Join(snapshotDir, summaryFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	w.log.WithField("dir", snapshotDir).Info("Snapshot written")
	return nil
}

func (w *Writer) Close() error {
	return nil
}

// Load reads the report stored in a single snapshot directory.
func Load(dir string) (*model.Report, error) {
	f, err := os.Open(filepath.Join(dir, countsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var p payload
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot '%s': %w", dir, err)
	}

	r := &model.Report{Counts: model.NewCounts(), Lines: p.Lines, Skipped: p.Skipped, Timestamp: p.Timestamp}
	for tag, n := range p.Tags {
		r.Tags[tag] = n
	}
	for _, pp := range p.PortProtocols {
		r.PortProtocols[model.LookupKey{Port: pp.Port, Protocol: pp.Protocol}] = pp.Count
	}
	return r, nil
}

// LoadLatest loads the newest snapshot under rootPath. Directory names sort by time.
// It returns nil, nil when there is no snapshot yet.
func LoadLatest(rootPath string) (*model.Report, error) {
	entries, err := os.ReadDir(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return nil, nil
	}
	sort.Strings(dirs)
	return Load(filepath.Join(rootPath, dirs[len(dirs)-1]))
}

func toPayload(r *model.Report, timestamp string) payload {
	p := payload{
		Timestamp:     timestamp,
		Lines:         r.Lines,
		Skipped:       r.Skipped,
		Tags:          make(map[string]uint64, len(r.Tags)),
		PortProtocols: make([]PortProtocolCount, 0, len(r.PortProtocols)),
	}
	for tag, n := range r.Tags {
		p.Tags[tag] = n
	}
	for k, n := range r.PortProtocols {
		p.PortProtocols = append(p.PortProtocols, PortProtocolCount{Port: k.Port, Protocol: k.Protocol, Count: n})
	}
	sort.Slice(p.PortProtocols, func(i, j int) bool {
		a, b := p.PortProtocols[i], p.PortProtocols[j]
		return model.LookupKey{Port: a.Port, Protocol: a.Protocol}.Less(model.LookupKey{Port: b.Port, Protocol: b.Protocol})
	})
	return p
}

func writeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
