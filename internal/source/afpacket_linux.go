//go:build linux

package source

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
)

type afpacketHandle struct {
	tp *afpacket.TPacket
}

func (h *afpacketHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return h.tp.ReadPacketData()
}

func (h *afpacketHandle) Close() {
	h.tp.Close()
}

func openAFPacket(lc config.LiveConfig, timeout time.Duration) (packetHandle, error) {
	frameSize := nextPow2(lc.SnapLen)
	if frameSize < 2048 {
		frameSize = 2048
	}
	if frameSize > 1<<16 {
		frameSize = 1 << 16
	}
	blockSize := 1 << 20
	if blockSize%frameSize != 0 {
		blockSize = frameSize * 16
	}

	opts := []interface{}{
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(64),
		afpacket.OptPollTimeout(timeout),
	}
	if lc.Interface != "any" {
		opts = append(opts, afpacket.OptInterface(lc.Interface))
	}

	tp, err := afpacket.NewTPacket(opts...)
	if err != nil {
		if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			return nil, captureError(lc.Interface, err)
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, fmt.Errorf("%w: failed to open AF_PACKET on %s (check the interface name): %v", model.ErrStartup, lc.Interface, err)
		}
		return nil, fmt.Errorf("%w: failed to open AF_PACKET on %s: %v", model.ErrStartup, lc.Interface, err)
	}

	prog, err := CompileFilter(lc.BPFFilter, lc.SnapLen)
	if err == nil {
		err = tp.SetBPF(prog)
	}
	if err != nil {
		tp.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	return &afpacketHandle{tp: tp}, nil
}

func isAFPacketTimeout(err error) bool {
	return errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, syscall.EINTR)
}

func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
