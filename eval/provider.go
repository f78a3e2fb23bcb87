package eval

import "github.com/flagbridge/go-server-sdk/flagmodel"

// DataProvider is the narrow read interface the evaluator needs into the data store: flag and
// segment lookups by key, with no awareness of how the store is populated or persisted.
type DataProvider interface {
	GetFlag(key string) (*flagmodel.FeatureFlag, bool)
	GetSegment(key string) (*flagmodel.Segment, bool)
}

// BigSegmentMembership answers "is this context in segment X" for one context, across possibly
// many big segments, without going back out to the store for every clause.
type BigSegmentMembership interface {
	// CheckMembership returns nil if the segment reference is not mentioned at all (absent),
	// or a pointer to true/false if membership is explicitly known.
	CheckMembership(segmentRef string) *bool
}

// BigSegmentProvider resolves per-context big-segment membership and reports staleness (§4.5).
type BigSegmentProvider interface {
	// GetMembership returns the membership set for one context key, or an error status
	// (BigSegmentsStoreError / BigSegmentsNotConfigured) if it could not be determined.
	GetMembership(contextKey string) (BigSegmentMembership, BigSegmentsStatus)
}

// MapMembership is a simple map-backed BigSegmentMembership: true for included, false for
// excluded (unless also included), absent for everything else.
type MapMembership map[string]bool

func (m MapMembership) CheckMembership(segmentRef string) *bool {
	if v, ok := m[segmentRef]; ok {
		return &v
	}
	return nil
}

// PrerequisiteEvent is recorded for each prerequisite flag evaluated while resolving a flag,
// tagged with the top-level flag key so the event pipeline can set prereqOf (§4.1 step 3).
type PrerequisiteEvent struct {
	PrerequisiteOf string
	Flag           *flagmodel.FeatureFlag
	Detail         Detail
}

// PrerequisiteEventRecorder receives PrerequisiteEvent notifications during evaluation.
type PrerequisiteEventRecorder func(PrerequisiteEvent)
