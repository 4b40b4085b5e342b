package classifier

import (
	"testing"

	"FlowTagger/internal/lookup"
	"FlowTagger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, rows ...lookup.Record) *lookup.Table {
	t.Helper()
	table, err := lookup.Build(rows)
	require.NoError(t, err)
	return table
}

func TestClassify_Match(t *testing.T) {
	table := newTable(t, lookup.Record{"dstport": "443", "protocol": "tcp", "tag": "web"})

	res, ok := Classify("2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 443 6 25 20000 1620140761", table)
	require.True(t, ok)
	assert.Equal(t, "web", res.Tag)
	assert.Equal(t, model.LookupKey{Port: "443", Protocol: "tcp"}, res.Key)
}

func TestClassify_Untagged(t *testing.T) {
	table := newTable(t, lookup.Record{"dstport": "443", "protocol": "tcp", "tag": "web"})

	res, ok := Classify("2 a b c d 9999 6 x", table)
	require.True(t, ok)
	assert.Equal(t, model.Untagged, res.Tag)
	assert.Equal(t, model.LookupKey{Port: "9999", Protocol: "tcp"}, res.Key)
}

func TestClassify_TooFewFields(t *testing.T) {
	table := newTable(t)

	_, ok := Classify("2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2", table)
	assert.False(t, ok)

	_, ok = Classify("a b c d e f g", table)
	assert.False(t, ok)

	_, ok = Classify("", table)
	assert.False(t, ok)

	_, ok = Classify("a b c d e f g h", table)
	assert.True(t, ok)
}

func TestClassify_UnknownProtocolFallsBack(t *testing.T) {
	table := newTable(t, lookup.Record{"dstport": "0", "protocol": "47", "tag": "gre"})

	res, ok := Classify("2 a b c d 0 47 x", table)
	require.True(t, ok)
	assert.Equal(t, model.LookupKey{Port: "0", Protocol: "47"}, res.Key)
	assert.Equal(t, "gre", res.Tag)

	res, ok = Classify("2 a b c d 1 99 x", table)
	require.True(t, ok)
	assert.Equal(t, "99", res.Key.Protocol)
	assert.Equal(t, model.Untagged, res.Tag)
}

func TestClassify_ArbitraryWhitespace(t *testing.T) {
	table := newTable(t, lookup.Record{"dstport": "53", "protocol": "udp", "tag": "dns"})

	res, ok := Classify("  2\ta  b\t\tc d   e 53 \t 17 x  \r", table)
	require.True(t, ok)
	assert.Equal(t, "dns", res.Tag)
}

func TestClassify_OpaqueValues(t *testing.T) {
	table := newTable(t, lookup.Record{"dstport": "http", "protocol": "TCP", "tag": "named"})

	res, ok := Classify("2 a b c d http 6 x", table)
	require.True(t, ok)
	assert.Equal(t, "named", res.Tag)

	res, ok = Classify("2 a b c d 80 TCP x", table)
	require.True(t, ok)
	assert.Equal(t, "tcp", res.Key.Protocol)
}
