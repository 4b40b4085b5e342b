package pcap

import (
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/flowlog"
	"FlowTagger/internal/model"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

// Reader turns the packets of a pcap file into flow log records.
type Reader struct {
	file   *os.File
	source *gopacket.PacketSource
	log    logrus.FieldLogger

	// AccountID and InterfaceID are copied into every record.
	AccountID   string
	InterfaceID string
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string, log logrus.FieldLogger) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{
		file:   f,
		source: gopacket.NewPacketSource(r, r.LinkType()),
		log:    log,
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadRecords reads all packets and aggregates them per 5-tuple.
// Records are returned in the order their first packet was seen.
// Packets that are not IP with TCP, UDP or ICMP are skipped.
func (r *Reader) ReadRecords() ([]flowlog.Record, error) {
	index := make(map[string]int)
	var records []flowlog.Record
	skipped := 0

	for {
		packet, err := r.source.NextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}

		info, err := protocol.ParsePacket(packet)
		if err != nil {
			skipped++
			r.log.WithError(err).Debug("Error parsing packet")
			continue
		}

		key := flowKey(info.FiveTuple)
		ts := info.Timestamp.Unix()
		if i, ok := index[key]; ok {
			rec := &records[i]
			rec.Packets++
			rec.Bytes += uint64(info.Length)
			if ts > rec.End {
				rec.End = ts
			}
			continue
		}

		index[key] = len(records)
		records = append(records, flowlog.Record{
			Version:     2,
			AccountID:   r.AccountID,
			InterfaceID: r.InterfaceID,
			SrcAddr:     info.FiveTuple.SrcIP.String(),
			DstAddr:     info.FiveTuple.DstIP.String(),
			DstPort:     info.FiveTuple.DstPort,
			Protocol:    info.FiveTuple.Protocol,
			SrcPort:     info.FiveTuple.SrcPort,
			Packets:     1,
			Bytes:       uint64(info.Length),
			Start:       ts,
			End:         ts,
			Action:      "ACCEPT",
			LogStatus:   "OK",
		})
	}

	r.log.WithFields(logrus.Fields{"flows": len(records), "skipped_packets": skipped}).Info("Finished reading packets")
	return records, nil
}

func flowKey(ft model.FiveTuple) string {
	return ft.SrcIP.String() + "|" + ft.DstIP.String() + "|" +
		strconv.Itoa(int(ft.SrcPort)) + "|" + strconv.Itoa(int(ft.DstPort)) + "|" +
		strconv.Itoa(int(ft.Protocol))
}
