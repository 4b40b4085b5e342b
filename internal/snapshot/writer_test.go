package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"FlowTagger/internal/logger"
	"FlowTagger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(timestamp string) *model.Report {
	counts := model.NewCounts()
	counts.Tags["sv_P2"] = 1
	counts.Tags[model.Untagged] = 2
	counts.PortProtocols[model.NewLookupKey("443", "tcp")] = 2
	counts.PortProtocols[model.NewLookupKey("25", "tcp")] = 1
	return &model.Report{Counts: counts, Lines: 4, Skipped: 1, Timestamp: timestamp}
}

func TestWriter_WriteSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	w := NewWriter(tmpDir, logger.Discard())

	require.NoError(t, w.Write(context.Background(), sampleReport("2026-10-17_09-00-00")))

	snapshotDir := filepath.Join(tmpDir, "2026-10-17_09-00-00")
	assert.FileExists(t, filepath.Join(snapshotDir, "counts.gob"))

	summaryBytes, err := os.ReadFile(filepath.Join(snapshotDir, "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(summaryBytes, &summary))
	assert.Equal(t, "2026-10-17_09-00-00", summary.Timestamp)
	assert.Equal(t, uint64(4), summary.Lines)
	assert.Equal(t, uint64(1), summary.Skipped)
	assert.Equal(t, 2, summary.Tags)
	assert.Equal(t, 2, summary.PortProtocols)

	got, err := Load(snapshotDir)
	require.NoError(t, err)
	assert.Equal(t, sampleReport("2026-10-17_09-00-00"), got)
}

func TestLoadLatest(t *testing.T) {
	tmpDir := t.TempDir()

	r, err := LoadLatest(filepath.Join(tmpDir, "missing"))
	require.NoError(t, err)
	assert.Nil(t, r)

	w := NewWriter(tmpDir, logger.Discard())
	older := sampleReport("2026-10-16_23-59-59")
	older.Lines = 100
	require.NoError(t, w.Write(context.Background(), older))
	require.NoError(t, w.Write(context.Background(), sampleReport("2026-10-17_00-00-00")))

	r, err = LoadLatest(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "2026-10-17_00-00-00", r.Timestamp)
	assert.Equal(t, uint64(4), r.Lines)
}

func TestWriter_SameSecondRunsKeepSeparateSnapshots(t *testing.T) {
	tmpDir := t.TempDir()
	w := NewWriter(tmpDir, logger.Discard())

	first := sampleReport("2026-10-17_09-00-00.100")
	first.Lines = 100
	require.NoError(t, w.Write(context.Background(), first))
	require.NoError(t, w.Write(context.Background(), sampleReport("2026-10-17_09-00-00.900")))

	dirs, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, dirs, 2)

	r, err := LoadLatest(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "2026-10-17_09-00-00.900", r.Timestamp)
	assert.Equal(t, uint64(4), r.Lines)
}

func TestWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWriter(t.TempDir(), logger.Discard())
	assert.ErrorIs(t, w.Write(ctx, sampleReport("x")), context.Canceled)
}
