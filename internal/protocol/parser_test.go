package protocol

import (
	"errors"
	"net"
	"testing"
	"time"

	"Go2NetGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"tcp syn", Frame{SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2), SrcPort: 40000, DstPort: 22, Protocol: ProtoTCP, Flags: model.FlagSYN}},
		{"udp dns", Frame{SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(8, 8, 8, 8), SrcPort: 53000, DstPort: 53, Protocol: ProtoUDP, PayloadLen: 40}},
		{"icmp echo", Frame{SrcIP: net.IPv4(10, 0, 0, 9), DstIP: net.IPv4(10, 0, 0, 1), Protocol: ProtoICMP, PayloadLen: 56}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := BuildFrame(tt.frame)
			if err != nil {
				t.Fatalf("BuildFrame failed: %v", err)
			}
			ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}

			ev, err := ParsePacket(data, ci, layers.LayerTypeEthernet, model.OriginReplay)
			if err != nil {
				t.Fatalf("ParsePacket failed: %v", err)
			}
			if !ev.SrcIP.Equal(tt.frame.SrcIP) || !ev.DstIP.Equal(tt.frame.DstIP) {
				t.Errorf("Addresses = %v -> %v, want %v -> %v", ev.SrcIP, ev.DstIP, tt.frame.SrcIP, tt.frame.DstIP)
			}
			if ev.Protocol != tt.frame.Protocol {
				t.Errorf("Protocol = %s, want %s", ev.Protocol, tt.frame.Protocol)
			}
			if ev.SrcPort != tt.frame.SrcPort || ev.DstPort != tt.frame.DstPort {
				t.Errorf("Ports = %d -> %d, want %d -> %d", ev.SrcPort, ev.DstPort, tt.frame.SrcPort, tt.frame.DstPort)
			}
			if ev.Flags != tt.frame.Flags {
				t.Errorf("Flags = %08b, want %08b", ev.Flags, tt.frame.Flags)
			}
			if ev.Length != len(data) {
				t.Errorf("Length = %d, want %d", ev.Length, len(data))
			}
			if !ev.Timestamp.Equal(ts) {
				t.Errorf("Timestamp = %v, want %v", ev.Timestamp, ts)
			}
			if ev.Origin != model.OriginReplay {
				t.Errorf("Origin = %s, want %s", ev.Origin, model.OriginReplay)
			}
		})
	}
}

func TestParsePacket_NotIP(t *testing.T) {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		t.Fatal(err)
	}

	_, err := ParsePacket(buf.Bytes(), gopacket.CaptureInfo{}, layers.LayerTypeEthernet, model.OriginLive)
	if !errors.Is(err, ErrNotIP) {
		t.Fatalf("Expected ErrNotIP, got %v", err)
	}
}

func TestProtocolName(t *testing.T) {
	if got := ProtocolName(layers.IPProtocolICMPv6); got != ProtoICMP {
		t.Errorf("ICMPv6 = %s, want icmp", got)
	}
	if got := ProtocolName(layers.IPProtocolGRE); got != ProtoOther {
		t.Errorf("GRE = %s, want other", got)
	}
}
