// Package datakinds defines the closed set of collections the data store holds (flags and
// segments) along with their per-kind JSON (de)serializers, replacing a duck-typed "feature store
// kind" concept with an explicit enum (§9 design notes).
package datakinds

import (
	"encoding/json"

	"github.com/flagbridge/go-server-sdk/flagmodel"
)

// Kind identifies one of the two data collections the store maintains.
type Kind string

const (
	Flags    Kind = "flags"
	Segments Kind = "segments"
)

// AllKinds lists every kind the data store knows about, in a stable order used by Init.
var AllKinds = []Kind{Flags, Segments}

// jsonFlag and jsonSegment mirror the wire representation of §3; field names match the streaming
// and polling payloads described in §6.
type jsonClause struct {
	ContextKind string            `json:"contextKind,omitempty"`
	Attribute   string            `json:"attribute"`
	Op          string            `json:"op"`
	Values      []json.RawMessage `json:"values"`
	Negate      bool              `json:"negate"`
}

type jsonWeightedVariation struct {
	Variation int  `json:"variation"`
	Weight    int  `json:"weight"`
	Untracked bool `json:"untracked,omitempty"`
}

type jsonRollout struct {
	Kind        string                  `json:"kind,omitempty"`
	ContextKind string                  `json:"contextKind,omitempty"`
	BucketBy    *string                 `json:"bucketBy,omitempty"`
	Seed        *int                    `json:"seed,omitempty"`
	Variations  []jsonWeightedVariation `json:"variations"`
}

type jsonVariationOrRollout struct {
	Variation *int         `json:"variation,omitempty"`
	Rollout   *jsonRollout `json:"rollout,omitempty"`
}

type jsonFlagRule struct {
	ID                 string                 `json:"id"`
	Clauses            []jsonClause           `json:"clauses"`
	TrackEvents        bool                   `json:"trackEvents,omitempty"`
	VariationOrRollout jsonVariationOrRollout `json:",inline"`
	Variation          *int                   `json:"variation,omitempty"`
	Rollout            *jsonRollout           `json:"rollout,omitempty"`
}

type jsonTarget struct {
	ContextKind string   `json:"contextKind,omitempty"`
	Variation   int      `json:"variation"`
	Values      []string `json:"values"`
}

type jsonPrerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

type jsonFlag struct {
	Key                    string                 `json:"key"`
	Version                int                    `json:"version"`
	On                     bool                   `json:"on"`
	Variations             []json.RawMessage      `json:"variations"`
	OffVariation           *int                   `json:"offVariation,omitempty"`
	Fallthrough            jsonVariationOrRollout `json:"fallthrough"`
	Targets                []jsonTarget           `json:"targets,omitempty"`
	ContextTargets         []jsonTarget           `json:"contextTargets,omitempty"`
	Rules                  []jsonFlagRule         `json:"rules,omitempty"`
	Prerequisites          []jsonPrerequisite     `json:"prerequisites,omitempty"`
	Salt                   string                 `json:"salt,omitempty"`
	TrackEvents            bool                   `json:"trackEvents,omitempty"`
	TrackEventsFallthrough bool                   `json:"trackEventsFallthrough,omitempty"`
	DebugEventsUntilDate   *int64                 `json:"debugEventsUntilDate,omitempty"`
	SamplingRatio          *int                   `json:"samplingRatio,omitempty"`
	ExcludeFromSummaries   bool                   `json:"excludeFromSummaries,omitempty"`
	Migration              *jsonMigration        `json:"migration,omitempty"`
	Deleted                bool                   `json:"deleted,omitempty"`
}

type jsonMigration struct {
	CheckRatio *int `json:"checkRatio,omitempty"`
}

type jsonSegmentRule struct {
	ID                 string       `json:"id"`
	Clauses            []jsonClause `json:"clauses"`
	Weight             *int         `json:"weight,omitempty"`
	BucketBy           *string      `json:"bucketBy,omitempty"`
	RolloutContextKind string       `json:"rolloutContextKind,omitempty"`
}

type jsonContextKeys struct {
	ContextKind string   `json:"contextKind"`
	Values      []string `json:"values"`
}

type jsonSegment struct {
	Key                  string            `json:"key"`
	Version              int               `json:"version"`
	Included             []string          `json:"included,omitempty"`
	Excluded             []string          `json:"excluded,omitempty"`
	IncludedContexts     []jsonContextKeys `json:"includedContexts,omitempty"`
	ExcludedContexts     []jsonContextKeys `json:"excludedContexts,omitempty"`
	Rules                []jsonSegmentRule `json:"rules,omitempty"`
	Salt                 string            `json:"salt,omitempty"`
	Unbounded            bool              `json:"unbounded,omitempty"`
	UnboundedContextKind string            `json:"unboundedContextKind,omitempty"`
	Generation           *int              `json:"generation,omitempty"`
	Deleted              bool              `json:"deleted,omitempty"`
}
