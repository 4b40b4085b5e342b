package aggregator

import "FlowTagger/internal/model"

// Aggregator maintains the tag counts and (port, protocol) counts of a run.
// It is not safe for concurrent use; each worker owns its own and they are merged at the end.
type Aggregator struct {
	tags          map[string]uint64
	portProtocols map[model.LookupKey]uint64
	records       uint64
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		tags:          make(map[string]uint64),
		portProtocols: make(map[model.LookupKey]uint64),
	}
}

// RecordTag increments the count for tag.
func (a *Aggregator) RecordTag(tag string) {
	a.tags[tag]++
}

// RecordPortProtocol increments the count for key.
func (a *Aggregator) RecordPortProtocol(key model.LookupKey) {
	a.portProtocols[key]++
}

// Add records one classified line in both mappings.
func (a *Aggregator) Add(result model.ClassificationResult) {
	a.RecordTag(result.Tag)
	a.RecordPortProtocol(result.Key)
	a.records++
}

// Merge sums the counts of other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	for tag, n := range other.tags {
		a.tags[tag] += n
	}
	for key, n := range other.portProtocols {
		a.portProtocols[key] += n
	}
	a.records += other.records
}

// Records returns the number of results passed to Add, including merged ones.
func (a *Aggregator) Records() uint64 {
	return a.records
}

// Counts returns a copy of both mappings.
func (a *Aggregator) Counts() model.Counts {
	c := model.Counts{
		Tags:          make(map[string]uint64, len(a.tags)),
		PortProtocols: make(map[model.LookupKey]uint64, len(a.portProtocols)),
	}
	for tag, n := range a.tags {
		c.Tags[tag] = n
	}
	for key, n := range a.portProtocols {
		c.PortProtocols[key] = n
	}
	return c
}
