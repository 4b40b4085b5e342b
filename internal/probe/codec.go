package probe

import (
	"FlowTagger/internal/model"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts a report into a protobuf Struct:
//
//	{timestamp, lines, skipped, tags: {tag: count}, port_protocols: [{port, protocol, count}]}
//
// Counts travel as protobuf numbers (float64) and stay exact below 2^53.
// Protobuf strings must be valid UTF-8, so invalid bytes in tags, ports and
// protocols are replaced with U+FFFD; tags that collide after that are summed.
func ToStruct(r *model.Report) (*structpb.Struct, error) {
	tagCounts := make(map[string]uint64, len(r.Tags))
	for tag, n := range r.Tags {
		tagCounts[validUTF8(tag)] += n
	}
	tags := make(map[string]interface{}, len(tagCounts))
	for tag, n := range tagCounts {
		tags[tag] = n
	}
	pairs := make([]interface{}, 0, len(r.PortProtocols))
	for key, n := range r.PortProtocols {
		pairs = append(pairs, map[string]interface{}{
			"port":     validUTF8(key.Port),
			"protocol": validUTF8(key.Protocol),
			"count":    n,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"timestamp":      validUTF8(r.Timestamp),
		"lines":          r.Lines,
		"skipped":        r.Skipped,
		"tags":           tags,
		"port_protocols": pairs,
	})
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (*model.Report, error) {
	fields := s.GetFields()
	r := &model.Report{
		Counts:    model.NewCounts(),
		Timestamp: fields["timestamp"].GetStringValue(),
		Lines:     uint64(fields["lines"].GetNumberValue()),
		Skipped:   uint64(fields["skipped"].GetNumberValue()),
	}

	for tag, v := range fields["tags"].GetStructValue().GetFields() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("tag '%s': count is not a number", tag)
		}
		r.Tags[tag] = uint64(v.GetNumberValue())
	}

	for i, v := range fields["port_protocols"].GetListValue().GetValues() {
		pair := v.GetStructValue().GetFields()
		if pair == nil {
			return nil, fmt.Errorf("port_protocols[%d]: not an object", i)
		}
		key := model.LookupKey{
			Port:     pair["port"].GetStringValue(),
			Protocol: pair["protocol"].GetStringValue(),
		}
		r.PortProtocols[key] += uint64(pair["count"].GetNumberValue())
	}
	return r, nil
}

// Marshal serializes a report to the protobuf binary format published on NATS.
func Marshal(r *model.Report) ([]byte, error) {
	s, err := ToStruct(r)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Unmarshal decodes a message produced by Marshal.
func Unmarshal(data []byte) (*model.Report, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return FromStruct(&s)
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
