package pcap

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowTagger/internal/flowlog"
	"FlowTagger/internal/logger"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCapture writes a small capture: two packets of one TCP flow, one UDP packet and one ARP packet.
func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	eth := func(et layers.EthernetType) *layers.Ethernet {
		return &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: et,
		}
	}
	write := func(ts time.Time, ls ...gopacket.SerializableLayer) {
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}
		require.NoError(t, w.WritePacket(ci, buf.Bytes()))
	}

	start := time.Unix(1620140761, 0)
	for i := 0; i < 2; i++ {
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
			SrcIP: net.IPv4(10, 0, 1, 201), DstIP: net.IPv4(198, 51, 100, 2)}
		tcp := &layers.TCP{SrcPort: 49153, DstPort: 443, ACK: true, Window: 14600}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		write(start.Add(time.Duration(i)*time.Minute), eth(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload([]byte("hello")))
	}

	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IPv4(10, 0, 1, 5), DstIP: net.IPv4(8, 8, 8, 8)}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	write(start, eth(layers.EthernetTypeIPv4), ip, udp)

	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, SourceProtAddress: []byte{10, 0, 1, 5},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 1, 1},
	}
	write(start, eth(layers.EthernetTypeARP), arp)

	return path
}

func TestReader_ReadRecords(t *testing.T) {
	reader, err := NewReader(writeCapture(t), logger.Discard())
	require.NoError(t, err)
	defer reader.Close()
	reader.AccountID = "123456789012"

	records, err := reader.ReadRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)

	tcp := records[0]
	assert.Equal(t, uint16(443), tcp.DstPort)
	assert.Equal(t, uint8(6), tcp.Protocol)
	assert.Equal(t, uint64(2), tcp.Packets)
	assert.Equal(t, int64(1620140761), tcp.Start)
	assert.Equal(t, int64(1620140821), tcp.End)
	assert.Equal(t, "123456789012", tcp.AccountID)

	fields := flowlog.Fields(records[1].String())
	assert.Equal(t, "53", fields[flowlog.DstPortField])
	assert.Equal(t, "17", fields[flowlog.ProtocolField])
}

func TestNewReader_Errors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.pcap"), logger.Discard())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(path, []byte("not a capture"), 0644))
	_, err = NewReader(path, logger.Discard())
	assert.Error(t, err)
}
