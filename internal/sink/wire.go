package sink

import (
	"fmt"
	"time"

	"Go2NetGuard/internal/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeAlert serializes rec as a protobuf Struct for the wire.
func EncodeAlert(rec *model.AlertRecord) ([]byte, error) {
	pb, err := structpb.NewStruct(map[string]interface{}{
		"seq":       rec.Seq,
		"timestamp": rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"src_ip":    rec.SrcIP,
		"src_port":  rec.SrcPort,
		"dst_ip":    rec.DstIP,
		"dst_port":  rec.DstPort,
		"protocol":  rec.Protocol,
		"size":      rec.Size,
		"label":     string(rec.Label),
		"score":     rec.Score,
		"origin":    rec.Origin,
		"run_id":    rec.RunID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build alert message: %w", err)
	}
	return proto.Marshal(pb)
}

// DecodeAlert is the inverse of EncodeAlert.
func DecodeAlert(data []byte) (*model.AlertRecord, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert message: %w", err)
	}
	f := pb.GetFields()
	num := func(k string) float64 { return f[k].GetNumberValue() }
	str := func(k string) string { return f[k].GetStringValue() }

	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("alert message has invalid timestamp: %w", err)
	}
	return &model.AlertRecord{
		Seq:       uint64(num("seq")),
		Timestamp: ts,
		SrcIP:     str("src_ip"),
		SrcPort:   uint16(num("src_port")),
		DstIP:     str("dst_ip"),
		DstPort:   uint16(num("dst_port")),
		Protocol:  str("protocol"),
		Size:      int(num("size")),
		Label:     model.Label(str("label")),
		Score:     num("score"),
		Origin:    str("origin"),
		RunID:     str("run_id"),
	}, nil
}
