package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"time"

	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/protocol"
	"Go2NetGuard/pkg/pcap"
)

func main() {
	outputFile := flag.String("o", "data/demo.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	attackShare := flag.Float64("attack", 0.2, "Share of attack-shaped packets")
	gap := flag.Duration("gap", 10*time.Millisecond, "Recorded gap between packets")
	seed := flag.Int64("seed", 0, "Random seed; 0 seeds from the clock")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	w, err := pcap.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer w.Close()

	log.Printf("Generating %d packets into %s...", *packetCount, *outputFile)

	ts := time.Now()
	attacks := 0
	for i := 0; i < *packetCount; i++ {
		var f protocol.Frame
		if rng.Float64() < *attackShare {
			f = attackFrame(rng)
			attacks++
		} else {
			f = normalFrame(rng)
		}

		data, err := protocol.BuildFrame(f)
		if err != nil {
			log.Fatalf("Failed to build packet %d: %v", i, err)
		}
		if err := w.WritePacket(ts, data); err != nil {
			log.Fatalf("Failed to write packet %d: %v", i, err)
		}
		ts = ts.Add(*gap)
	}

	log.Printf("Successfully generated %d packets (%d attack-shaped).", *packetCount, attacks)
}

func hostIP(rng *rand.Rand, subnet byte) net.IP {
	return net.IPv4(10, 0, subnet, byte(rng.Intn(254)+1))
}

func ephemeral(rng *rand.Rand) uint16 {
	return uint16(49152 + rng.Intn(65535-49152))
}

// attackFrame returns a SYN probe, an ICMP flood packet or a UDP flood packet.
func attackFrame(rng *rand.Rand) protocol.Frame {
	f := protocol.Frame{SrcIP: hostIP(rng, 66), DstIP: hostIP(rng, 1)}
	switch rng.Intn(3) {
	case 0:
		f.Protocol = protocol.ProtoTCP
		f.Flags = model.FlagSYN
		f.SrcPort = ephemeral(rng)
		f.DstPort = uint16(rng.Intn(1023) + 1)
	case 1:
		f.Protocol = protocol.ProtoICMP
		f.PayloadLen = 3000 + rng.Intn(6000)
	default:
		f.Protocol = protocol.ProtoUDP
		f.SrcPort = ephemeral(rng)
		f.DstPort = uint16(rng.Intn(1023) + 1)
		f.PayloadLen = 3000 + rng.Intn(5000)
	}
	return f
}

func normalFrame(rng *rand.Rand) protocol.Frame {
	f := protocol.Frame{SrcIP: hostIP(rng, 1), DstIP: hostIP(rng, 2), SrcPort: ephemeral(rng)}
	if rng.Intn(4) == 0 {
		f.Protocol = protocol.ProtoUDP
		f.DstPort = 53
		f.PayloadLen = 20 + rng.Intn(400)
		return f
	}
	ports := []uint16{22, 80, 443, 8080, 8443}
	f.Protocol = protocol.ProtoTCP
	f.DstPort = ports[rng.Intn(len(ports))]
	f.Flags = model.FlagACK
	if rng.Intn(2) == 0 {
		f.Flags |= model.FlagPSH
	}
	f.PayloadLen = rng.Intn(1400)
	return f
}
