package classifier

import (
	"strings"

	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/flowlog"
	"FlowTagger/internal/model"
)

// Lookup resolves a (port, protocol) key to a tag. *lookup.Table implements it.
type Lookup interface {
	Lookup(key model.LookupKey) (string, bool)
}

// Classify extracts the destination port and protocol of a flow log line and tags it.
// It returns false when the line has fewer than flowlog.MinFields fields.
// Field values are opaque strings; nothing is validated as a number.
func Classify(line string, table Lookup) (model.ClassificationResult, bool) {
	fields := flowlog.Fields(line)
	if len(fields) < flowlog.MinFields {
		return model.ClassificationResult{}, false
	}

	dstPort := strings.TrimSpace(fields[flowlog.DstPortField])
	protoName := strings.ToLower(protocol.Resolve(fields[flowlog.ProtocolField]))
	key := model.LookupKey{Port: dstPort, Protocol: protoName}

	tag, ok := table.Lookup(key)
	if !ok {
		tag = model.Untagged
	}
	return model.ClassificationResult{Key: key, Tag: tag}, true
}
