// Package pcap opens recorded capture files in either the classic pcap or the
// pcapng format without requiring libpcap.
package pcap

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Reader reads packets from a pcap or pcapng file.
type Reader struct {
	file *os.File
	src  gopacket.PacketDataSource
	link layers.LinkType
}

// NewReader opens the file at filePath and detects its format from the
// leading magic number.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header of '%s': %w", filePath, err)
	}

	r := &Reader{file: f}
	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open pcapng '%s': %w", filePath, err)
		}
		r.src, r.link = ng, ng.LinkType()
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open pcap '%s': %w", filePath, err)
		}
		r.src, r.link = pr, pr.LinkType()
	}
	return r, nil
}

// LinkType returns the link layer of the packets in the file.
func (r *Reader) LinkType() layers.LinkType {
	return r.link
}

// ReadPacketData returns the next packet. io.EOF marks the end of the file.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return r.src.ReadPacketData()
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
