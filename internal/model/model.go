package model

import (
	"net"
	"strings"
	"time"
)

// Untagged is the tag assigned to records whose (port, protocol) pair has no lookup entry.
const Untagged = "Untagged"

// TimestampLayout formats Report.Timestamp. Values sort in time order as plain strings.
const TimestampLayout = "2006-01-02_15-04-05.000"

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
}

// LookupKey identifies a (destination port, protocol name) combination.
// Build it with NewLookupKey so both fields are normalized.
type LookupKey struct {
	Port     string
	Protocol string
}

// NewLookupKey trims both fields and lowercases the protocol.
func NewLookupKey(port, protocol string) LookupKey {
	return LookupKey{
		Port:     strings.TrimSpace(port),
		Protocol: strings.ToLower(strings.TrimSpace(protocol)),
	}
}

// Less orders keys by port string, then protocol string.
func (k LookupKey) Less(other LookupKey) bool {
	if k.Port != other.Port {
		return k.Port < other.Port
	}
	return k.Protocol < other.Protocol
}

func (k LookupKey) String() string {
	return k.Port + "/" + k.Protocol
}

// ClassificationResult is the outcome of classifying one flow log line.
type ClassificationResult struct {
	Key LookupKey
	Tag string
}

// Counts holds the two aggregate mappings of a run.
type Counts struct {
	Tags          map[string]uint64
	PortProtocols map[LookupKey]uint64
}

// NewCounts returns empty, ready to use mappings.
func NewCounts() Counts {
	return Counts{
		Tags:          make(map[string]uint64),
		PortProtocols: make(map[LookupKey]uint64),
	}
}

// Report is the summary of a finished run handed to the writers.
type Report struct {
	Counts
	// Lines is the number of lines read, Skipped the number of those discarded as malformed.
	Lines     uint64
	Skipped   uint64
	Timestamp string
}

// Classified returns the number of lines that produced a classification result.
func (r *Report) Classified() uint64 {
	return r.Lines - r.Skipped
}
