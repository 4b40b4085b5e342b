package protocol

import "strings"

// names maps the well-known IANA protocol numbers to their canonical names.
var names = map[string]string{
	"6":  "tcp",
	"17": "udp",
	"1":  "icmp",
}

// Resolve maps a protocol number as it appears in a flow log to its lowercase name.
// Unknown numbers are returned as-is, lowercased.
func Resolve(number string) string {
	number = strings.TrimSpace(number)
	if name, ok := names[number]; ok {
		return name
	}
	return strings.ToLower(number)
}
