package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"syscall"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

func init() {
	Register(config.ModeLive, newLive)
}

// packetHandle is the part of a capture handle the live source needs. Both
// *pcap.Handle and the afpacket wrapper satisfy it.
type packetHandle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	Close()
}

// LiveSource reads packets from a network interface. Reads return
// periodically on timeout so that cancellation is noticed even on an idle
// link.
type LiveSource struct {
	iface     string
	handle    packetHandle
	decoder   gopacket.Decoder
	isTimeout func(error) bool
	closed    bool
}

func newLive(cfg *config.IngestionConfig) (model.Source, error) {
	lc := cfg.Live
	timeout, err := time.ParseDuration(lc.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid read timeout: %v", model.ErrStartup, err)
	}

	switch lc.Engine {
	case "afpacket":
		h, err := openAFPacket(lc, timeout)
		if err != nil {
			return nil, err
		}
		log.Printf("LiveSource: capturing on %s with AF_PACKET", lc.Interface)
		return newLiveSource(lc.Interface, h, layers.LayerTypeEthernet, isAFPacketTimeout), nil
	default:
		h, err := pcap.OpenLive(lc.Interface, int32(lc.SnapLen), lc.Promiscuous, timeout)
		if err != nil {
			return nil, captureError(lc.Interface, err)
		}
		if lc.BPFFilter != "" {
			if err := h.SetBPFFilter(lc.BPFFilter); err != nil {
				h.Close()
				return nil, fmt.Errorf("%w: failed to set BPF filter '%s': %v", model.ErrStartup, lc.BPFFilter, err)
			}
		}
		log.Printf("LiveSource: capturing on %s with libpcap (filter %q)", lc.Interface, lc.BPFFilter)
		return newLiveSource(lc.Interface, h, h.LinkType(), isPcapTimeout), nil
	}
}

func newLiveSource(iface string, h packetHandle, first gopacket.Decoder, isTimeout func(error) bool) *LiveSource {
	return &LiveSource{
		iface:     iface,
		handle:    h,
		decoder:   first,
		isTimeout: isTimeout,
	}
}

// captureError turns a handle acquisition failure into an actionable startup
// error.
func captureError(iface string, err error) error {
	if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return fmt.Errorf("%w: capturing on %s requires root or CAP_NET_RAW: %v", model.ErrStartup, iface, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not permitted") {
		return fmt.Errorf("%w: capturing on %s requires root or CAP_NET_RAW: %v", model.ErrStartup, iface, err)
	}
	if strings.Contains(msg, "no such device") {
		return fmt.Errorf("%w: interface %s does not exist: %v", model.ErrStartup, iface, err)
	}
	return fmt.Errorf("%w: failed to open %s: %v", model.ErrStartup, iface, err)
}

func isPcapTimeout(err error) bool {
	return err == pcap.NextErrorTimeoutExpired
}

// Name implements model.Source.
func (s *LiveSource) Name() string {
	return "live:" + s.iface
}

// Next blocks until an IP packet arrives or ctx is done.
func (s *LiveSource) Next(ctx context.Context) (*model.RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if s.isTimeout(err) {
				continue
			}
			return nil, fmt.Errorf("%w: reading from %s: %v", model.ErrHandleLost, s.iface, err)
		}
		ev, err := protocol.ParsePacket(data, ci, s.decoder, model.OriginLive)
		if err != nil {
			continue
		}
		return ev, nil
	}
}

// Close releases the capture handle. It is safe to call more than once.
func (s *LiveSource) Close() error {
	if !s.closed {
		s.closed = true
		s.handle.Close()
	}
	return nil
}
