// Package flowlog describes the positional text layout of flow log lines.
package flowlog

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Field positions (0-based) of a whitespace-separated flow log line.
const (
	DstPortField  = 5
	ProtocolField = 6

	// MinFields is the number of fields below which a line is treated as malformed.
	MinFields = 8
)

// MaxLineSize bounds the flow log lines kept in memory. Longer lines are
// reported by Reader.Oversized and dropped instead of failing the read.
const MaxLineSize = 1 << 20

// Record is one flow log entry as written by the probe.
type Record struct {
	Version     int
	AccountID   string
	InterfaceID string
	SrcAddr     string
	DstAddr     string
	DstPort     uint16
	Protocol    uint8
	SrcPort     uint16
	Packets     uint64
	Bytes       uint64
	Start       int64
	End         int64
	Action      string
	LogStatus   string
}

// String renders the record as one flow log line, without a trailing newline.
func (r Record) String() string {
	fields := []string{
		strconv.Itoa(r.Version),
		orDash(r.AccountID),
		orDash(r.InterfaceID),
		orDash(r.SrcAddr),
		orDash(r.DstAddr),
		strconv.Itoa(int(r.DstPort)),
		strconv.Itoa(int(r.Protocol)),
		strconv.Itoa(int(r.SrcPort)),
		strconv.FormatUint(r.Packets, 10),
		strconv.FormatUint(r.Bytes, 10),
		strconv.FormatInt(r.Start, 10),
		strconv.FormatInt(r.End, 10),
		orDash(r.Action),
		orDash(r.LogStatus),
	}
	return strings.Join(fields, " ")
}

// Fields splits a line on runs of whitespace.
func Fields(line string) []string {
	return strings.Fields(line)
}

// Reader reads flow log lines one at a time, in the manner of bufio.Scanner.
type Reader struct {
	br        *bufio.Reader
	buf       []byte
	oversized bool
	err       error
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next line. It returns false at the end of the input or on a read error.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	r.buf = r.buf[:0]
	r.oversized = false

	started := false
	for {
		frag, isPrefix, err := r.br.ReadLine()
		if err != nil {
			if err != io.EOF {
				r.err = err
				return false
			}
			r.err = err
			return started
		}
		started = true
		if !r.oversized {
			if len(r.buf)+len(frag) > MaxLineSize {
				r.oversized = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, frag...)
			}
		}
		if !isPrefix {
			return true
		}
	}
}

// Text returns the current line. It is empty when the line was oversized.
func (r *Reader) Text() string {
	return string(r.buf)
}

// Oversized reports whether the current line exceeded MaxLineSize.
func (r *Reader) Oversized() bool {
	return r.oversized
}

// Err returns the first read error other than io.EOF.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// WriteRecords writes one line per record.
func WriteRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(r.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// orDash keeps empty values from collapsing the positional layout.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
