package protocol

import (
	"errors"
	"net"
	"time"

	"Go2NetGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotIP is returned for frames without an IPv4 or IPv6 layer. Sources skip
// such frames rather than publishing them.
var ErrNotIP = errors.New("not an IP packet")

// Protocol labels produced by the decoder. They match the classes the
// protocol encoder was trained on; anything else is "other".
const (
	ProtoTCP   = "tcp"
	ProtoUDP   = "udp"
	ProtoICMP  = "icmp"
	ProtoOther = "other"
)

// ProtocolName maps an IP protocol number to its label.
func ProtocolName(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return ProtoTCP
	case layers.IPProtocolUDP:
		return ProtoUDP
	case layers.IPProtocolICMPv4, layers.IPProtocolICMPv6:
		return ProtoICMP
	default:
		return ProtoOther
	}
}

// ParsePacket uses gopacket to decode a raw frame and extract the RawEvent
// fields. Length is the original wire length when known.
func ParsePacket(data []byte, ci gopacket.CaptureInfo, first gopacket.Decoder, origin string) (*model.RawEvent, error) {
	packet := gopacket.NewPacket(data, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ev := &model.RawEvent{
		Timestamp: ci.Timestamp,
		Observed:  time.Now(),
		Length:    ci.Length,
		Origin:    origin,
	}
	if ev.Length == 0 {
		ev.Length = len(data)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = ev.Observed
	}

	var ipProto layers.IPProtocol
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		ev.SrcIP, ev.DstIP = copyIP(ip.SrcIP), copyIP(ip.DstIP)
		ipProto = ip.Protocol
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		ev.SrcIP, ev.DstIP = copyIP(ip.SrcIP), copyIP(ip.DstIP)
		ipProto = ip.NextHeader
	} else {
		return nil, ErrNotIP
	}
	ev.Protocol = ProtocolName(ipProto)

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		ev.SrcPort = uint16(tcp.SrcPort)
		ev.DstPort = uint16(tcp.DstPort)
		ev.Flags = tcpFlags(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		ev.SrcPort = uint16(udp.SrcPort)
		ev.DstPort = uint16(udp.DstPort)
	}

	return ev, nil
}

func tcpFlags(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	return f
}

// copyIP detaches the address from the capture buffer, which NoCopy decoding
// may reuse for the next frame.
func copyIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}
