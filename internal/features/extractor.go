// Package features turns RawEvents into the fixed-width vectors the
// classifier was trained on.
package features

import (
	"math"
	"math/bits"

	"Go2NetGuard/internal/model"
)

// Feature positions. The order is part of the model contract.
const (
	IdxProtocol = iota
	IdxSrcBytes
	IdxDstBytes
	IdxSizeBucket
	IdxSrcPortClass
	IdxDstPortClass
	IdxFlagSYN
	IdxFlagACK
	IdxFlagFIN
	IdxFlagRST

	Width
)

// Names lists the feature names in vector order.
var Names = [Width]string{
	"protocol_type",
	"src_bytes",
	"dst_bytes",
	"size_bucket",
	"src_port_class",
	"dst_port_class",
	"flag_syn",
	"flag_ack",
	"flag_fin",
	"flag_rst",
}

// Port classes.
const (
	PortNone       = 0
	PortWellKnown  = 1 // 1-1023
	PortRegistered = 2 // 1024-49151
	PortEphemeral  = 3 // 49152-65535
)

// MaxSizeBucket caps size_bucket; lengths of 32 KiB and above share it.
const MaxSizeBucket = 16

// Encoder maps a protocol label to its trained integer code.
type Encoder interface {
	Encode(label string) int
}

// Extractor builds FeatureVectors. It holds no mutable state.
type Extractor struct {
	enc Encoder
}

// NewExtractor creates an extractor that encodes protocols with enc.
func NewExtractor(enc Encoder) *Extractor {
	return &Extractor{enc: enc}
}

// Width returns the length of every vector produced by Extract.
func (x *Extractor) Width() int {
	return Width
}

// Names returns the feature names in vector order.
func (x *Extractor) Names() []string {
	out := make([]string, Width)
	copy(out, Names[:])
	return out
}

// Extract derives the feature vector for ev. It never fails: a nil event, a
// negative length or an empty protocol become zero length and the unknown
// protocol code.
//
//	src_bytes      = max(length, 0)
//	dst_bytes      = 0 (single packet view)
//	size_bucket    = 0 if length == 0, else min(floor(log2(length))+1, 16)
//	*_port_class   = 0 none, 1 well-known, 2 registered, 3 ephemeral
//	flag_*         = 1 if the TCP flag is set, else 0
func (x *Extractor) Extract(ev *model.RawEvent) model.FeatureVector {
	v := make(model.FeatureVector, Width)
	if ev == nil {
		v[IdxProtocol] = float64(x.enc.Encode(""))
		return v
	}

	length := ev.Length
	if length < 0 {
		length = 0
	}

	v[IdxProtocol] = float64(x.enc.Encode(ev.Protocol))
	v[IdxSrcBytes] = float64(length)
	v[IdxDstBytes] = 0
	v[IdxSizeBucket] = float64(SizeBucket(length))
	v[IdxSrcPortClass] = float64(PortClass(ev.SrcPort))
	v[IdxDstPortClass] = float64(PortClass(ev.DstPort))
	v[IdxFlagSYN] = flag(ev.Flags, model.FlagSYN)
	v[IdxFlagACK] = flag(ev.Flags, model.FlagACK)
	v[IdxFlagFIN] = flag(ev.Flags, model.FlagFIN)
	v[IdxFlagRST] = flag(ev.Flags, model.FlagRST)

	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			v[i] = 0
		}
	}
	return v
}

// SizeBucket returns the logarithmic length bucket.
func SizeBucket(length int) int {
	if length <= 0 {
		return 0
	}
	b := bits.Len(uint(length))
	if b > MaxSizeBucket {
		return MaxSizeBucket
	}
	return b
}

// PortClass maps a port to its IANA range.
func PortClass(port uint16) int {
	switch {
	case port == 0:
		return PortNone
	case port < 1024:
		return PortWellKnown
	case port < 49152:
		return PortRegistered
	default:
		return PortEphemeral
	}
}

func flag(flags, f uint8) float64 {
	if flags&f != 0 {
		return 1
	}
	return 0
}
