// Package flagmodel defines the flag and segment data model: the rule language of targets, rules,
// prerequisites, clauses, segments, rollouts, and experiments that the evaluator interprets.
package flagmodel

import "github.com/flagbridge/go-server-sdk/flagvalue"

// Operator names a clause comparison operator.
type Operator string

// The operator vocabulary supported by clause matching.
const (
	OperatorIn                 Operator = "in"
	OperatorEndsWith           Operator = "endsWith"
	OperatorStartsWith         Operator = "startsWith"
	OperatorMatches            Operator = "matches"
	OperatorContains           Operator = "contains"
	OperatorLessThan           Operator = "lessThan"
	OperatorLessThanOrEqual    Operator = "lessThanOrEqual"
	OperatorGreaterThan        Operator = "greaterThan"
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OperatorBefore             Operator = "before"
	OperatorAfter              Operator = "after"
	OperatorSemVerEqual        Operator = "semVerEqual"
	OperatorSemVerLessThan     Operator = "semVerLessThan"
	OperatorSemVerGreaterThan  Operator = "semVerGreaterThan"
	OperatorSegmentMatch       Operator = "segmentMatch"
)

// RolloutKind distinguishes a plain percentage rollout from a tracked experiment.
type RolloutKind string

const (
	RolloutKindRollout    RolloutKind = "rollout"
	RolloutKindExperiment RolloutKind = "experiment"
)

// Clause is a single condition within a rule: an attribute, an operator, and a list of operands.
type Clause struct {
	ContextKind string
	Attribute   string // parsed lazily into an AttrRef by the evaluator
	Op          Operator
	Values      []flagvalue.Value
	Negate      bool
}

// WeightedVariation is one entry of a rollout's variation distribution.
type WeightedVariation struct {
	Variation int
	Weight    int // 0..100000
	Untracked bool
}

// Rollout describes a bucketed split across variations, either a plain rollout or an experiment.
type Rollout struct {
	Kind        RolloutKind
	ContextKind string
	BucketBy    string
	HasBucketBy bool
	Seed        *int
	Variations  []WeightedVariation
}

// VariationOrRollout is either a fixed variation index or a bucketed rollout.
type VariationOrRollout struct {
	Variation    *int
	Rollout      *Rollout
}

// FlagRule is one entry of a flag's ordered rule list.
type FlagRule struct {
	ID                 string
	Clauses             []Clause
	TrackEvents          bool
	VariationOrRollout  VariationOrRollout
}

// Target lists the context keys of a given context kind that are served a fixed variation.
type Target struct {
	ContextKind string
	Variation   int
	Values      map[string]bool
}

// ContextKeys lists context keys of a given kind, with no associated variation (used for segment
// inclusion/exclusion lists scoped to a context kind).
type ContextKeys struct {
	ContextKind string
	Values      map[string]bool
}

// Prerequisite names another flag and the variation it must yield for this flag to be "on".
type Prerequisite struct {
	Key       string
	Variation int
}

// ClientSideAvailability controls whether a flag may be evaluated/bootstrapped client-side.
type ClientSideAvailability struct {
	UsingMobileKey     bool
	UsingEnvironmentID bool
}

// MigrationSettings holds migration-flag-specific tuning (§4.4 migration_op events).
type MigrationSettings struct {
	CheckRatio *int
}

// FeatureFlag is the full flag data model (§3).
type FeatureFlag struct {
	Key                      string
	Version                  int
	On                       bool
	Variations               []flagvalue.Value
	OffVariation             *int
	Fallthrough              VariationOrRollout
	Targets                  []Target
	ContextTargets           []Target
	Rules                    []FlagRule
	Prerequisites            []Prerequisite
	Salt                     string
	TrackEvents              bool
	TrackEventsFallthrough   bool
	DebugEventsUntilDate     *int64
	ClientSideAvailability   ClientSideAvailability
	SamplingRatio            int // default 1 when zero
	ExcludeFromSummaries     bool
	Migration                *MigrationSettings
	Deleted                  bool
}

// EffectiveSamplingRatio returns the flag's sampling ratio, defaulting to 1.
func (f *FeatureFlag) EffectiveSamplingRatio() int {
	if f.SamplingRatio <= 0 {
		return 1
	}
	return f.SamplingRatio
}

// SegmentRule is one ordered rule within a segment's rule list.
type SegmentRule struct {
	ID                string
	Clauses           []Clause
	Weight            *int // 0..100000
	BucketBy          string
	HasBucketBy       bool
	RolloutContextKind string
}

// Segment is the full segment data model (§3).
type Segment struct {
	Key                    string
	Version                int
	Included               map[string]bool
	Excluded               map[string]bool
	IncludedContexts       []ContextKeys
	ExcludedContexts       []ContextKeys
	Rules                  []SegmentRule
	Salt                   string
	Unbounded              bool
	UnboundedContextKind   string
	Generation             *int
	Deleted                bool
}
