package protocol

import (
	"fmt"
	"net"

	"Go2NetGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Frame describes an Ethernet/IPv4 frame to synthesize. It is used by the
// trace generator and by tests that need real wire bytes.
type Frame struct {
	SrcIP      net.IP
	DstIP      net.IP
	SrcPort    uint16
	DstPort    uint16
	Protocol   string
	Flags      uint8
	PayloadLen int
}

// BuildFrame serializes f with checksums and lengths fixed up.
func BuildFrame(f Frame) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:   f.SrcIP.To4(),
		DstIP:   f.DstIP.To4(),
		Version: 4,
		TTL:     64,
	}
	if ip.SrcIP == nil || ip.DstIP == nil {
		return nil, fmt.Errorf("frame needs IPv4 addresses, got %v -> %v", f.SrcIP, f.DstIP)
	}

	payload := gopacket.Payload(make([]byte, f.PayloadLen))
	var stack []gopacket.SerializableLayer

	switch f.Protocol {
	case ProtoTCP:
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(f.SrcPort),
			DstPort: layers.TCPPort(f.DstPort),
			FIN:     f.Flags&model.FlagFIN != 0,
			SYN:     f.Flags&model.FlagSYN != 0,
			RST:     f.Flags&model.FlagRST != 0,
			PSH:     f.Flags&model.FlagPSH != 0,
			ACK:     f.Flags&model.FlagACK != 0,
			URG:     f.Flags&model.FlagURG != 0,
			Window:  14600,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		stack = []gopacket.SerializableLayer{eth, ip, tcp, payload}
	case ProtoUDP:
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(f.SrcPort),
			DstPort: layers.UDPPort(f.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		stack = []gopacket.SerializableLayer{eth, ip, udp, payload}
	case ProtoICMP:
		ip.Protocol = layers.IPProtocolICMPv4
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		}
		stack = []gopacket.SerializableLayer{eth, ip, icmp, payload}
	default:
		return nil, fmt.Errorf("cannot build frame for protocol '%s'", f.Protocol)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}
