package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/flagmodel"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// fixtureProvider is a map-backed DataProvider for evaluator tests, the same role the teacher's
// ldtestdata fixtures play for its evaluation tests.
type fixtureProvider struct {
	flags    map[string]*flagmodel.FeatureFlag
	segments map[string]*flagmodel.Segment
}

func newFixtureProvider() *fixtureProvider {
	return &fixtureProvider{flags: map[string]*flagmodel.FeatureFlag{}, segments: map[string]*flagmodel.Segment{}}
}

func (p *fixtureProvider) withFlag(f *flagmodel.FeatureFlag) *fixtureProvider {
	p.flags[f.Key] = f
	return p
}

func (p *fixtureProvider) withSegment(s *flagmodel.Segment) *fixtureProvider {
	p.segments[s.Key] = s
	return p
}

func (p *fixtureProvider) GetFlag(key string) (*flagmodel.FeatureFlag, bool) {
	f, ok := p.flags[key]
	return f, ok
}

func (p *fixtureProvider) GetSegment(key string) (*flagmodel.Segment, bool) {
	s, ok := p.segments[key]
	return s, ok
}

// fixtureBigSegments is a fixed-answer BigSegmentProvider.
type fixtureBigSegments struct {
	membership BigSegmentMembership
	status     BigSegmentsStatus
}

func (b *fixtureBigSegments) GetMembership(string) (BigSegmentMembership, BigSegmentsStatus) {
	return b.membership, b.status
}

func userCtx(key string) evalcontext.Context {
	return evalcontext.NewBuilder(key).Build()
}

func boolFlag(key string, on bool) *flagmodel.FeatureFlag {
	return &flagmodel.FeatureFlag{
		Key:         key,
		On:          on,
		Variations:  []flagvalue.Value{flagvalue.Bool(false), flagvalue.Bool(true)},
		Fallthrough: flagmodel.VariationOrRollout{Variation: intPtr(1)},
	}
}

func intPtr(i int) *int { return &i }

// Scenario 1: simple boolean, on, fallthrough variation 1.
func TestEvaluateSimpleBooleanFallthrough(t *testing.T) {
	flag := boolFlag("flag-key", true)
	provider := newFixtureProvider().withFlag(flag)
	evaluator := NewEvaluator(provider, nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, flagvalue.Bool(true), detail.Value)
	assert.Equal(t, 1, detail.VariationIndex)
	assert.Equal(t, KindFallthrough, detail.Reason.Kind)
}

// Scenario 2: target match takes precedence over fallthrough.
func TestEvaluateTargetMatch(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Targets = []flagmodel.Target{{Variation: 0, Values: map[string]bool{"a": true}}}
	provider := newFixtureProvider().withFlag(flag)
	evaluator := NewEvaluator(provider, nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, flagvalue.Bool(false), detail.Value)
	assert.Equal(t, 0, detail.VariationIndex)
	assert.Equal(t, KindTargetMatch, detail.Reason.Kind)
}

func TestEvaluateTargetMatchDoesNotApplyToOtherKeys(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Targets = []flagmodel.Target{{Variation: 0, Values: map[string]bool{"a": true}}}
	provider := newFixtureProvider().withFlag(flag)
	evaluator := NewEvaluator(provider, nil)

	detail := evaluator.Evaluate("flag-key", userCtx("b"), flagvalue.Bool(false), nil)

	assert.Equal(t, KindFallthrough, detail.Reason.Kind)
	assert.Equal(t, 1, detail.VariationIndex)
}

// Scenario 3: a failed prerequisite serves the top-level flag's off_variation, reason
// PREREQUISITE_FAILED, and a prerequisite evaluation event is recorded with prereqOf set.
func TestEvaluatePrerequisiteOff(t *testing.T) {
	f2 := boolFlag("f2", false)
	f2.OffVariation = intPtr(0)
	f2.TrackEvents = true

	f1 := boolFlag("f1", true)
	f1.OffVariation = intPtr(0)
	f1.Prerequisites = []flagmodel.Prerequisite{{Key: "f2", Variation: 1}}

	provider := newFixtureProvider().withFlag(f1).withFlag(f2)
	evaluator := NewEvaluator(provider, nil)

	var recorded []PrerequisiteEvent
	detail := evaluator.Evaluate("f1", userCtx("a"), flagvalue.Bool(true), func(e PrerequisiteEvent) {
		recorded = append(recorded, e)
	})

	assert.Equal(t, flagvalue.Bool(false), detail.Value)
	assert.Equal(t, 0, detail.VariationIndex)
	assert.Equal(t, KindPrerequisiteFail, detail.Reason.Kind)
	assert.Equal(t, "f2", detail.Reason.PrerequisiteKey)

	require.Len(t, recorded, 1)
	assert.Equal(t, "f1", recorded[0].PrerequisiteOf)
	assert.Equal(t, "f2", recorded[0].Flag.Key)
}

func TestEvaluatePrerequisiteSatisfiedFallsThroughNormally(t *testing.T) {
	f2 := boolFlag("f2", true) // fallthrough variation 1

	f1 := boolFlag("f1", true)
	f1.OffVariation = intPtr(0)
	f1.Prerequisites = []flagmodel.Prerequisite{{Key: "f2", Variation: 1}}

	provider := newFixtureProvider().withFlag(f1).withFlag(f2)
	evaluator := NewEvaluator(provider, nil)

	detail := evaluator.Evaluate("f1", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, KindFallthrough, detail.Reason.Kind)
	assert.Equal(t, 1, detail.VariationIndex)
}

// A flag that lists itself as its own prerequisite hits the cycle guard in checkPrerequisites.
// The recorded prerequisite-evaluation event for that self-reference must carry the malformed-flag
// ERROR detail (default value, VariationIndex -1) rather than being funneled through offResult and
// serving an off_variation value tagged with an ERROR reason, which would violate the invariant
// that a variation index is only -1 exactly when reason.kind == ERROR. The top-level evaluation
// result still reports the ordinary PREREQUISITE_FAILED case (serving its own off_variation),
// since failing a prerequisite for any reason -- including a detected cycle -- is a legitimate
// prerequisite failure from the dependent flag's point of view.
func TestEvaluateSelfReferencingPrerequisiteCycle(t *testing.T) {
	f1 := boolFlag("f1", true)
	f1.OffVariation = intPtr(0)
	f1.TrackEvents = true
	f1.Prerequisites = []flagmodel.Prerequisite{{Key: "f1", Variation: 0}}

	provider := newFixtureProvider().withFlag(f1)
	evaluator := NewEvaluator(provider, nil)

	var recorded []PrerequisiteEvent
	detail := evaluator.Evaluate("f1", userCtx("a"), flagvalue.Bool(true), func(e PrerequisiteEvent) {
		recorded = append(recorded, e)
	})

	require.Len(t, recorded, 1)
	cycleDetail := recorded[0].Detail
	assert.True(t, cycleDetail.Value.IsNull(), "the cyclic self-evaluation must serve its own default (null), not an off_variation value")
	assert.Equal(t, -1, cycleDetail.VariationIndex)
	assert.Equal(t, KindError, cycleDetail.Reason.Kind)
	assert.Equal(t, ErrorMalformedFlag, cycleDetail.Reason.ErrorKind)

	assert.Equal(t, KindPrerequisiteFail, detail.Reason.Kind)
	assert.Equal(t, "f1", detail.Reason.PrerequisiteKey)
	assert.Equal(t, 0, detail.VariationIndex)
	assert.Equal(t, flagvalue.Bool(false), detail.Value)
}

// Scenario 4: percentage rollout. Bucket values reproduce the teacher's known-good hash outputs
// for key "hashKey", salt "saltyA", bucketing by the context key.
func TestEvaluatePercentageRollout(t *testing.T) {
	tests := []struct {
		userKey       string
		wantVariation int
	}{
		{"userKeyA", 0}, // bucket ~0.42157587, < 0.6
		{"userKeyB", 1}, // bucket ~0.6708485, >= 0.6
		{"userKeyC", 0}, // bucket ~0.10343106, < 0.6
	}

	for _, tt := range tests {
		t.Run(tt.userKey, func(t *testing.T) {
			flag := &flagmodel.FeatureFlag{
				Key:        "hashKey",
				On:         true,
				Salt:       "saltyA",
				Variations: []flagvalue.Value{flagvalue.Bool(false), flagvalue.Bool(true)},
				Fallthrough: flagmodel.VariationOrRollout{
					Rollout: &flagmodel.Rollout{
						Kind: flagmodel.RolloutKindRollout,
						Variations: []flagmodel.WeightedVariation{
							{Variation: 0, Weight: 60000},
							{Variation: 1, Weight: 40000},
						},
					},
				},
			}
			provider := newFixtureProvider().withFlag(flag)
			evaluator := NewEvaluator(provider, nil)

			detail := evaluator.Evaluate("hashKey", userCtx(tt.userKey), flagvalue.Bool(false), nil)

			assert.Equal(t, tt.wantVariation, detail.VariationIndex)
			assert.Equal(t, KindFallthrough, detail.Reason.Kind)
		})
	}
}

func TestEvaluateRolloutLastVariationAbsorbsRemainder(t *testing.T) {
	// A rollout whose weights sum to less than 100% must still resolve for every bucket value;
	// the last variation absorbs the remainder of the bucket space (§4.1.2 step 5).
	flag := &flagmodel.FeatureFlag{
		Key:        "hashKey",
		On:         true,
		Salt:       "saltyA",
		Variations: []flagvalue.Value{flagvalue.Bool(false), flagvalue.Bool(true)},
		Fallthrough: flagmodel.VariationOrRollout{
			Rollout: &flagmodel.Rollout{
				Kind:       flagmodel.RolloutKindRollout,
				Variations: []flagmodel.WeightedVariation{{Variation: 0, Weight: 1}},
			},
		},
	}
	provider := newFixtureProvider().withFlag(flag)
	evaluator := NewEvaluator(provider, nil)

	// userKeyB buckets at ~0.67, well past the 0.00001 weight allotted to variation 0.
	detail := evaluator.Evaluate("hashKey", userCtx("userKeyB"), flagvalue.Bool(false), nil)
	assert.Equal(t, 0, detail.VariationIndex)
}

// Scenario 5: big segment membership and status propagation.
func TestEvaluateBigSegmentMatch(t *testing.T) {
	gen := 3
	segment := &flagmodel.Segment{Key: "big-seg", Unbounded: true, Generation: &gen}
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{{
			Op:     flagmodel.OperatorSegmentMatch,
			Values: []flagvalue.Value{flagvalue.String("big-seg")},
		}},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	provider := newFixtureProvider().withFlag(flag).withSegment(segment)
	bigSegments := &fixtureBigSegments{
		membership: MapMembership{"big-seg.3": true},
		status:     BigSegmentsHealthy,
	}
	evaluator := NewEvaluator(provider, bigSegments)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(true), nil)

	assert.Equal(t, 0, detail.VariationIndex)
	assert.Equal(t, KindRuleMatch, detail.Reason.Kind)
	assert.Equal(t, BigSegmentsHealthy, detail.Reason.BigSegmentsStatus)
}

func TestEvaluateBigSegmentStaleStatusPropagates(t *testing.T) {
	gen := 3
	segment := &flagmodel.Segment{Key: "big-seg", Unbounded: true, Generation: &gen}
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{{
			Op:     flagmodel.OperatorSegmentMatch,
			Values: []flagvalue.Value{flagvalue.String("big-seg")},
		}},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	provider := newFixtureProvider().withFlag(flag).withSegment(segment)
	bigSegments := &fixtureBigSegments{
		membership: MapMembership{"big-seg.3": true},
		status:     BigSegmentsStale,
	}
	evaluator := NewEvaluator(provider, bigSegments)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(true), nil)

	assert.Equal(t, BigSegmentsStale, detail.Reason.BigSegmentsStatus)
}

func TestEvaluateBigSegmentNotConfigured(t *testing.T) {
	gen := 1
	segment := &flagmodel.Segment{Key: "big-seg", Unbounded: true, Generation: &gen}
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{{
			Op:     flagmodel.OperatorSegmentMatch,
			Values: []flagvalue.Value{flagvalue.String("big-seg")},
		}},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	provider := newFixtureProvider().withFlag(flag).withSegment(segment)
	evaluator := NewEvaluator(provider, nil) // no BigSegmentProvider configured

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(true), nil)

	assert.Equal(t, KindFallthrough, detail.Reason.Kind, "segment should not match without a BigSegmentProvider")
	assert.Equal(t, BigSegmentsNotConfigured, detail.Reason.BigSegmentsStatus)
}

// Segment-references-segment recursion past the depth limit is a malformed-flag error, not a
// silent non-match (§4.1.1).
func TestEvaluateSegmentRecursionLimitIsMalformed(t *testing.T) {
	provider := newFixtureProvider()
	segment := &flagmodel.Segment{
		Key: "self-ref",
		Rules: []flagmodel.SegmentRule{{
			Clauses: []flagmodel.Clause{{
				Op:     flagmodel.OperatorSegmentMatch,
				Values: []flagvalue.Value{flagvalue.String("self-ref")},
			}},
		}},
	}
	provider.withSegment(segment)

	flag := boolFlag("flag-key", true)
	flag.OffVariation = intPtr(0)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{{
			Op:     flagmodel.OperatorSegmentMatch,
			Values: []flagvalue.Value{flagvalue.String("self-ref")},
		}},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	provider.withFlag(flag)
	evaluator := NewEvaluator(provider, nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, flagvalue.Bool(false), detail.Value)
	assert.Equal(t, -1, detail.VariationIndex)
	assert.Equal(t, KindError, detail.Reason.Kind)
	assert.Equal(t, ErrorMalformedFlag, detail.Reason.ErrorKind)
}

// Invariant: variation returns default iff reason.kind == ERROR.
func TestEvaluateFlagNotFoundReturnsDefaultWithError(t *testing.T) {
	evaluator := NewEvaluator(newFixtureProvider(), nil)
	detail := evaluator.Evaluate("missing", userCtx("a"), flagvalue.String("default"), nil)

	assert.Equal(t, flagvalue.String("default"), detail.Value)
	assert.Equal(t, -1, detail.VariationIndex)
	assert.Equal(t, KindError, detail.Reason.Kind)
	assert.Equal(t, ErrorFlagNotFound, detail.Reason.ErrorKind)
	assert.True(t, detail.IsDefaultValue())
}

func TestEvaluateInvalidContextReturnsDefaultWithError(t *testing.T) {
	flag := boolFlag("flag-key", true)
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	invalidCtx := evalcontext.NewBuilder("").Build()
	detail := evaluator.Evaluate("flag-key", invalidCtx, flagvalue.Bool(false), nil)

	assert.Equal(t, KindError, detail.Reason.Kind)
	assert.Equal(t, ErrorUserNotSpecified, detail.Reason.ErrorKind)
	assert.Equal(t, -1, detail.VariationIndex)
}

func TestEvaluateOffFlagWithNoOffVariationReturnsDefault(t *testing.T) {
	flag := boolFlag("flag-key", false)
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, KindOff, detail.Reason.Kind)
	assert.Equal(t, -1, detail.VariationIndex)
	assert.True(t, detail.IsDefaultValue())
}

func TestEvaluateOffFlagServesOffVariation(t *testing.T) {
	flag := boolFlag("flag-key", false)
	flag.OffVariation = intPtr(0)
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(true), nil)

	assert.Equal(t, KindOff, detail.Reason.Kind)
	assert.Equal(t, 0, detail.VariationIndex)
	assert.Equal(t, flagvalue.Bool(false), detail.Value)
}

func TestEvaluateOutOfRangeVariationIsMalformed(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Fallthrough = flagmodel.VariationOrRollout{Variation: intPtr(99)}
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	detail := evaluator.Evaluate("flag-key", userCtx("a"), flagvalue.Bool(false), nil)

	assert.Equal(t, KindError, detail.Reason.Kind)
	assert.Equal(t, ErrorMalformedFlag, detail.Reason.ErrorKind)
	assert.Equal(t, -1, detail.VariationIndex)
}

// Rule matching: a multi-clause rule only matches when every clause matches.
func TestRuleMatchRequiresAllClauses(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{
			{Attribute: "email", Op: flagmodel.OperatorEndsWith, Values: []flagvalue.Value{flagvalue.String("gmail.com")}},
			{Attribute: "plan", Op: flagmodel.OperatorIn, Values: []flagvalue.Value{flagvalue.String("pro")}},
		},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}

	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	match := evalcontext.NewBuilder("a").
		SetAttribute("email", flagvalue.String("a@gmail.com")).
		SetAttribute("plan", flagvalue.String("pro")).
		Build()
	detail := evaluator.Evaluate("flag-key", match, flagvalue.Bool(true), nil)
	assert.Equal(t, KindRuleMatch, detail.Reason.Kind)
	assert.Equal(t, 0, detail.VariationIndex)

	partial := evalcontext.NewBuilder("a").
		SetAttribute("email", flagvalue.String("a@gmail.com")).
		SetAttribute("plan", flagvalue.String("free")).
		Build()
	detail = evaluator.Evaluate("flag-key", partial, flagvalue.Bool(true), nil)
	assert.Equal(t, KindFallthrough, detail.Reason.Kind)
}

func TestClauseNegation(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses: []flagmodel.Clause{
			{Attribute: "group", Op: flagmodel.OperatorIn, Values: []flagvalue.Value{flagvalue.String("blocked")}, Negate: true},
		},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	allowed := evalcontext.NewBuilder("a").SetAttribute("group", flagvalue.String("ok")).Build()
	detail := evaluator.Evaluate("flag-key", allowed, flagvalue.Bool(true), nil)
	assert.Equal(t, KindRuleMatch, detail.Reason.Kind)

	blocked := evalcontext.NewBuilder("a").SetAttribute("group", flagvalue.String("blocked")).Build()
	detail = evaluator.Evaluate("flag-key", blocked, flagvalue.Bool(true), nil)
	assert.Equal(t, KindFallthrough, detail.Reason.Kind)
}

func TestClauseMatchesArrayAttribute(t *testing.T) {
	flag := boolFlag("flag-key", true)
	flag.Rules = []flagmodel.FlagRule{{
		Clauses:            []flagmodel.Clause{{Attribute: "group", Op: flagmodel.OperatorIn, Values: []flagvalue.Value{flagvalue.String("Microsoft"), flagvalue.String("Google")}}},
		VariationOrRollout: flagmodel.VariationOrRollout{Variation: intPtr(0)},
	}}
	evaluator := NewEvaluator(newFixtureProvider().withFlag(flag), nil)

	ctx := evalcontext.NewBuilder("a").
		SetAttribute("group", flagvalue.Array(flagvalue.String("Youtube"), flagvalue.String("Google"))).
		Build()
	detail := evaluator.Evaluate("flag-key", ctx, flagvalue.Bool(true), nil)
	assert.Equal(t, KindRuleMatch, detail.Reason.Kind)
}

func TestSegmentExplicitIncludeAndExclude(t *testing.T) {
	included := &flagmodel.Segment{Key: "included", Included: map[string]bool{"foo": true}}
	excluded := &flagmodel.Segment{Key: "excluded", Excluded: map[string]bool{"foo": true}}
	bothExplicitExcludeWins := &flagmodel.Segment{
		Key:      "both",
		Included: map[string]bool{"foo": true},
		Excluded: map[string]bool{"foo": true},
	}

	provider := newFixtureProvider().withSegment(included).withSegment(excluded).withSegment(bothExplicitExcludeWins)
	evaluator := NewEvaluator(provider, nil)

	assert.True(t, evaluator.segmentMatches("included", userCtx("foo"), newState()))
	assert.False(t, evaluator.segmentMatches("excluded", userCtx("foo"), newState()))
	assert.False(t, evaluator.segmentMatches("both", userCtx("foo"), newState()), "explicit exclude takes precedence over explicit include")
}

func TestSegmentRuleWithRollout(t *testing.T) {
	fullRollout := 100000
	zeroRollout := 0
	rule := func(weight int) flagmodel.SegmentRule {
		return flagmodel.SegmentRule{
			Clauses: []flagmodel.Clause{{Attribute: "email", Op: flagmodel.OperatorIn, Values: []flagvalue.Value{flagvalue.String("test@example.com")}}},
			Weight:  &weight,
		}
	}

	fullSeg := &flagmodel.Segment{Key: "full", Rules: []flagmodel.SegmentRule{rule(fullRollout)}}
	zeroSeg := &flagmodel.Segment{Key: "zero", Rules: []flagmodel.SegmentRule{rule(zeroRollout)}}

	provider := newFixtureProvider().withSegment(fullSeg).withSegment(zeroSeg)
	evaluator := NewEvaluator(provider, nil)

	ctx := evalcontext.NewBuilder("foo").SetAttribute("email", flagvalue.String("test@example.com")).Build()
	assert.True(t, evaluator.segmentMatches("full", ctx, newState()))
	assert.False(t, evaluator.segmentMatches("zero", ctx, newState()))
}

func newState() *evalState {
	return &evalState{visitedFlags: map[string]bool{}, visitedSegments: map[string]bool{}, membershipCache: map[string]membershipCacheEntry{}}
}

func TestShouldSampleEventAlwaysSamplesAtRatioOne(t *testing.T) {
	assert.True(t, ShouldSampleEvent(0))
	assert.True(t, ShouldSampleEvent(1))
}
