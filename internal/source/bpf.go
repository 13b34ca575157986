package source

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// defaultFilter is the expression used when none is configured.
const defaultFilter = "ip or ip6"

// IPOnlyBPF accepts Ethernet frames carrying IPv4 or IPv6 and drops the rest.
func IPOnlyBPF() ([]bpf.RawInstruction, error) {
	ins := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2}, // EtherType
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.EthernetTypeIPv4), SkipTrue: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.EthernetTypeIPv6), SkipTrue: 1},
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: 0xFFFF},
	}

	raw, err := bpf.Assemble(ins)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF: %w", err)
	}
	return raw, nil
}

// CompileFilter turns a tcpdump expression into a raw program for an
// Ethernet link. The default expression uses the hand-written program.
func CompileFilter(expr string, snaplen int) ([]bpf.RawInstruction, error) {
	if expr == "" || expr == defaultFilter {
		return IPOnlyBPF()
	}

	compiled, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snaplen, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter '%s': %w", expr, err)
	}
	raw := make([]bpf.RawInstruction, len(compiled))
	for i, ins := range compiled {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}
