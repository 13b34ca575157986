package pcap

import (
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Writer writes Ethernet frames to a classic pcap file.
type Writer struct {
	file *os.File
	w    *pcapgo.Writer
}

// Create truncates or creates filePath and writes the file header.
func Create(filePath string) (*Writer, error) {
	f, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{file: f, w: w}, nil
}

// WritePacket appends one frame captured at ts.
func (w *Writer) WritePacket(ts time.Time, data []byte) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return w.w.WritePacket(ci, data)
}

// Close closes the file.
func (w *Writer) Close() error {
	return w.file.Close()
}
