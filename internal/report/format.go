// Package report renders aggregate counts as the plain text report and reads it back.
package report

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"FlowTagger/internal/model"
)

const (
	tagSection  = "Tag Counts:"
	tagHeader   = "Tag,Count"
	portSection = "Port/Protocol Combination Counts:"
	portHeader  = "Port,Protocol,Count"
)

// Format renders both mappings, each section sorted so that equal counts always give identical output.
func Format(counts model.Counts) string {
	var b strings.Builder

	b.WriteString(tagSection + "\n")
	b.WriteString(tagHeader + "\n")
	tags := make([]string, 0, len(counts.Tags))
	for tag := range counts.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintf(&b, "%s,%d\n", tag, counts.Tags[tag])
	}

	b.WriteString("\n" + portSection + "\n")
	b.WriteString(portHeader + "\n")
	keys := make([]model.LookupKey, 0, len(counts.PortProtocols))
	for key := range counts.PortProtocols {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, key := range keys {
		fmt.Fprintf(&b, "%s,%s,%d\n", key.Port, key.Protocol, counts.PortProtocols[key])
	}

	return b.String()
}

// Parse reads a report produced by Format back into count mappings.
func Parse(text string) (model.Counts, error) {
	counts := model.NewCounts()
	scanner := bufio.NewScanner(strings.NewReader(text))

	section := ""
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		switch line {
		case "":
			continue
		case tagSection, portSection:
			section = line
			continue
		case tagHeader, portHeader:
			continue
		}

		switch section {
		case tagSection:
			i := strings.LastIndexByte(line, ',')
			if i < 0 {
				return model.Counts{}, fmt.Errorf("line %d: malformed tag count '%s'", lineNo, line)
			}
			n, err := strconv.ParseUint(line[i+1:], 10, 64)
			if err != nil {
				return model.Counts{}, fmt.Errorf("line %d: invalid count: %w", lineNo, err)
			}
			counts.Tags[line[:i]] = n
		case portSection:
			first := strings.IndexByte(line, ',')
			last := strings.LastIndexByte(line, ',')
			if first < 0 || first == last {
				return model.Counts{}, fmt.Errorf("line %d: malformed port/protocol count '%s'", lineNo, line)
			}
			n, err := strconv.ParseUint(line[last+1:], 10, 64)
			if err != nil {
				return model.Counts{}, fmt.Errorf("line %d: invalid count: %w", lineNo, err)
			}
			key := model.LookupKey{Port: line[:first], Protocol: line[first+1 : last]}
			counts.PortProtocols[key] = n
		default:
			return model.Counts{}, fmt.Errorf("line %d: data outside of any section", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return model.Counts{}, err
	}
	return counts, nil
}
