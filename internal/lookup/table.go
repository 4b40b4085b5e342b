package lookup

import (
	"fmt"
	"sort"
	"strings"

	"FlowTagger/internal/model"
)

// Column names of the lookup table.
const (
	ColumnPort     = "dstport"
	ColumnProtocol = "protocol"
	ColumnTag      = "tag"
)

// Record is one decoded lookup row, keyed by column name.
type Record map[string]string

// MissingFieldError reports a lookup row without one of the required columns.
type MissingFieldError struct {
	Field string
	// Row is the 1-based index of the data row, not counting the header.
	Row int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("lookup row %d: missing required field '%s'", e.Row, e.Field)
}

// Entry is a single (key, tag) mapping of a Table.
type Entry struct {
	Key model.LookupKey
	Tag string
}

// Table maps (port, protocol) keys to tags. It is read-only once built.
type Table struct {
	entries map[model.LookupKey]string
}

// Build creates a Table from decoded rows. Later rows overwrite earlier rows with the same key.
// A row lacking a required column fails the whole build.
func Build(records []Record) (*Table, error) {
	entries := make(map[model.LookupKey]string, len(records))
	for i, rec := range records {
		port, err := field(rec, ColumnPort, i+1)
		if err != nil {
			return nil, err
		}
		proto, err := field(rec, ColumnProtocol, i+1)
		if err != nil {
			return nil, err
		}
		tag, err := field(rec, ColumnTag, i+1)
		if err != nil {
			return nil, err
		}
		entries[model.NewLookupKey(port, proto)] = strings.TrimSpace(tag)
	}
	return &Table{entries: entries}, nil
}

func field(rec Record, name string, row int) (string, error) {
	v, ok := rec[name]
	if !ok {
		return "", &MissingFieldError{Field: name, Row: row}
	}
	return v, nil
}

// Lookup returns the tag for key, if any.
func (t *Table) Lookup(key model.LookupKey) (string, bool) {
	tag, ok := t.entries[key]
	return tag, ok
}

// Len returns the number of distinct keys.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns all mappings ordered by key.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for k, v := range t.entries {
		out = append(out, Entry{Key: k, Tag: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
