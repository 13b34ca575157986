//go:build !linux

package source

import (
	"fmt"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

func openAFPacket(lc config.LiveConfig, _ time.Duration) (packetHandle, error) {
	return nil, fmt.Errorf("%w: the afpacket engine is only available on Linux", model.ErrStartup)
}

func isAFPacketTimeout(error) bool { return false }
