package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReadCSV decodes a lookup CSV: a header row naming the columns, then data rows.
// Rows shorter than the header lack the trailing columns. A bare quote inside
// an unquoted field is kept as part of the value.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup header: %w", err)
	}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = strings.TrimSpace(name)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read lookup row: %w", err)
		}
		rec := make(Record, len(header))
		for i, value := range row {
			if i < len(header) {
				rec[header[i]] = value
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadFile reads and builds the lookup table stored at path.
func LoadFile(path string, log logrus.FieldLogger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup table: %w", err)
	}
	defer f.Close()

	log.WithField("path", path).Info("Reading lookup table")
	records, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}

	table, err := Build(records)
	if err != nil {
		return nil, err
	}

	for _, e := range table.Entries() {
		log.WithFields(logrus.Fields{
			"port":     e.Key.Port,
			"protocol": e.Key.Protocol,
			"tag":      e.Tag,
		}).Debug("Lookup table entry")
	}
	log.WithField("mappings", table.Len()).Info("Lookup table read successfully")
	return table, nil
}
