package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// services are the destination ports the generator picks from, so that a sample lookup table matches some flows.
var services = []struct {
	port  uint16
	proto layers.IPProtocol
}{
	{25, layers.IPProtocolTCP},
	{23, layers.IPProtocolTCP},
	{443, layers.IPProtocolTCP},
	{110, layers.IPProtocolTCP},
	{993, layers.IPProtocolTCP},
	{143, layers.IPProtocolTCP},
	{3389, layers.IPProtocolTCP},
	{68, layers.IPProtocolUDP},
	{31, layers.IPProtocolUDP},
	{53, layers.IPProtocolUDP},
	{0, layers.IPProtocolICMPv4},
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	randomPorts := flag.Float64("random", 0.2, "Share of TCP packets sent to a random high port")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	log.Printf("Generating %d packets into %s...", *packetCount, *outputFile)

	start := time.Now()
	for i := 0; i < *packetCount; i++ {
		if (i+1)%100000 == 0 {
			log.Printf("Generated %d packets...", i+1)
		}

		srcIP := net.IP{10, 0, byte(rng.Intn(4)), byte(rng.Intn(254) + 1)}
		dstIP := net.IP{byte(rng.Intn(223) + 1), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)}

		svc := services[rng.Intn(len(services))]
		if svc.proto == layers.IPProtocolTCP && rng.Float64() < *randomPorts {
			svc.port = uint16(rng.Intn(65535-1024) + 1024)
		}

		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ipLayer := &layers.IPv4{
			SrcIP:    srcIP,
			DstIP:    dstIP,
			Version:  4,
			TTL:      64,
			Protocol: svc.proto,
		}

		payload := make([]byte, rng.Intn(1400)+50)
		rng.Read(payload)

		var transport gopacket.SerializableLayer
		srcPort := uint16(rng.Intn(65535-1024) + 1024)
		switch svc.proto {
		case layers.IPProtocolTCP:
			tcp := &layers.TCP{
				SrcPort: layers.TCPPort(srcPort),
				DstPort: layers.TCPPort(svc.port),
				Seq:     rng.Uint32(),
				ACK:     true,
				Window:  14600,
			}
			tcp.SetNetworkLayerForChecksum(ipLayer)
			transport = tcp
		case layers.IPProtocolUDP:
			udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(svc.port)}
			udp.SetNetworkLayerForChecksum(ipLayer)
			transport = udp
		default:
			transport = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
		}

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{
			ComputeChecksums: true,
			FixLengths:       true,
		}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, transport, gopacket.Payload(payload)); err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}
